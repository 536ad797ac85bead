// Package storage defines the persistence contract the trading workflow runs
// against. The memory implementation backs tests and local demos, the
// postgres implementation backs production.
package storage

import (
	"context"

	"github.com/satswap/satswap/models/notifications"
	"github.com/satswap/satswap/models/orders"
	"github.com/satswap/satswap/models/users"
)

// Users is the credential and profile store
type Users interface {
	// InsertUser returns users.ErrUsernameTaken if the exact username exists
	InsertUser(ctx context.Context, username string, hashedPassword []byte) (users.User, error)
	// GetUser returns users.ErrUserNotFound for unknown IDs
	GetUser(ctx context.Context, id int) (users.User, error)
	GetUserByUsername(ctx context.Context, username string) (users.User, error)
	UpdateProfile(ctx context.Context, id int, profile users.Profile) (users.User, error)
	ListUsers(ctx context.Context) ([]users.User, error)
}

// Orders is the order ledger
type Orders interface {
	InsertOrder(ctx context.Context, order orders.Order) (orders.Order, error)
	// GetOrder returns orders.ErrOrderNotFound for unknown IDs
	GetOrder(ctx context.Context, id int) (orders.Order, error)
	// LockOrder is GetOrder, but keeps other transactions from changing the
	// order until this one ends
	LockOrder(ctx context.Context, id int) (orders.Order, error)
	DeleteOrder(ctx context.Context, id int) error
	// ApproveOrder flips a pending order to approved. It returns
	// orders.ErrAlreadyApproved if someone else got there first.
	ApproveOrder(ctx context.Context, id, approverID int) (orders.Order, error)
	// ListOrders returns every order, newest first
	ListOrders(ctx context.Context) ([]orders.Order, error)
	// ApprovedBetween is true if either user approved an order of the other
	ApprovedBetween(ctx context.Context, first, second int) (bool, error)
}

// Notifications is the append-only notification log
type Notifications interface {
	InsertNotification(ctx context.Context, n notifications.Notification) (notifications.Notification, error)
	// ListNotifications returns the feed of the user, newest first
	ListNotifications(ctx context.Context, userID int) ([]notifications.Notification, error)
}

// Store is everything the application persists
type Store interface {
	Users
	Orders
	Notifications

	// Transact runs fn as one unit of work. Everything fn does through the
	// given Store is committed if fn returns nil, and discarded otherwise.
	Transact(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error
}
