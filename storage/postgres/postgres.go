// Package postgres is the storage.Store used in production. It is a thin
// layer over the SQL functions in the models packages.
package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/satswap/satswap/db"
	"github.com/satswap/satswap/models/notifications"
	"github.com/satswap/satswap/models/orders"
	"github.com/satswap/satswap/models/users"
	"github.com/satswap/satswap/storage"
)

// Store runs queries against the given database, or against an open
// transaction when it is handed to a Transact callback
type Store struct {
	db *db.DB
	q  db.Querier
}

var _ storage.Store = &Store{}

// New returns a Store backed by the given database
func New(d *db.DB) *Store {
	return &Store{db: d, q: d}
}

// Transact runs fn inside a database transaction. Nested calls join the
// surrounding transaction.
func (s *Store) Transact(ctx context.Context, fn func(tx storage.Store) error) error {
	if _, inTx := s.q.(*sqlx.Tx); inTx {
		return fn(s)
	}
	return s.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&Store{db: s.db, q: tx})
	})
}

// Ping verifies the database can be reached
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) InsertUser(ctx context.Context, username string, hashedPassword []byte) (users.User, error) {
	return users.Insert(ctx, s.q, username, hashedPassword)
}

func (s *Store) GetUser(ctx context.Context, id int) (users.User, error) {
	return users.GetByID(ctx, s.q, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (users.User, error) {
	return users.GetByUsername(ctx, s.q, username)
}

func (s *Store) UpdateProfile(ctx context.Context, id int, profile users.Profile) (users.User, error) {
	return users.UpdateProfile(ctx, s.q, id, profile)
}

func (s *Store) ListUsers(ctx context.Context) ([]users.User, error) {
	return users.GetAll(ctx, s.q)
}

func (s *Store) InsertOrder(ctx context.Context, order orders.Order) (orders.Order, error) {
	return orders.Insert(ctx, s.q, order)
}

func (s *Store) GetOrder(ctx context.Context, id int) (orders.Order, error) {
	return orders.GetByID(ctx, s.q, id)
}

// LockOrder selects the order FOR UPDATE. Only meaningful inside Transact.
func (s *Store) LockOrder(ctx context.Context, id int) (orders.Order, error) {
	return orders.GetByIDForUpdate(ctx, s.q, id)
}

func (s *Store) DeleteOrder(ctx context.Context, id int) error {
	return orders.Delete(ctx, s.q, id)
}

func (s *Store) ApproveOrder(ctx context.Context, id, approverID int) (orders.Order, error) {
	return orders.Approve(ctx, s.q, id, approverID)
}

func (s *Store) ListOrders(ctx context.Context) ([]orders.Order, error) {
	return orders.GetAll(ctx, s.q)
}

func (s *Store) ApprovedBetween(ctx context.Context, first, second int) (bool, error) {
	return orders.ApprovedBetween(ctx, s.q, first, second)
}

func (s *Store) InsertNotification(ctx context.Context, n notifications.Notification) (notifications.Notification, error) {
	return notifications.Insert(ctx, s.q, n)
}

func (s *Store) ListNotifications(ctx context.Context, userID int) ([]notifications.Notification, error) {
	return notifications.ListForUser(ctx, s.q, userID)
}
