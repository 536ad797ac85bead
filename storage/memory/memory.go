// Package memory is a storage.Store kept entirely in memory. All operations,
// transactions included, are serialised by a single mutex.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/satswap/satswap/build"
	"github.com/satswap/satswap/models/notifications"
	"github.com/satswap/satswap/models/orders"
	"github.com/satswap/satswap/models/users"
	"github.com/satswap/satswap/storage"
)

var log = build.AddSubLogger("MEMS")

type state struct {
	users         map[int]users.User
	orders        map[int]orders.Order
	notifications []notifications.Notification

	lastUserID         int
	lastOrderID        int
	lastNotificationID int
}

func (s *state) clone() *state {
	cloned := *s
	cloned.users = make(map[int]users.User, len(s.users))
	for id, u := range s.users {
		cloned.users[id] = u
	}
	cloned.orders = make(map[int]orders.Order, len(s.orders))
	for id, o := range s.orders {
		cloned.orders[id] = o
	}
	cloned.notifications = append([]notifications.Notification(nil), s.notifications...)
	return &cloned
}

// Store is an in-memory storage.Store
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

var _ storage.Store = &Store{}

// New returns an empty store
func New() *Store {
	return &Store{
		state: &state{
			users:  map[int]users.User{},
			orders: map[int]orders.Order{},
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source used for created_at and updated_at
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) view() *view {
	return &view{st: s.state, now: s.now}
}

// Transact holds the store lock while fn runs. If fn fails or panics, every
// change it made is thrown away. fn must only use the Store it is given.
func (s *Store) Transact(ctx context.Context, fn func(tx storage.Store) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
	}()

	if err = fn(s.view()); err != nil {
		log.WithError(err).Debug("Rolling back transaction")
		s.state = snapshot
		return err
	}
	return nil
}

// Ping always succeeds
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) InsertUser(ctx context.Context, username string, hashedPassword []byte) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().InsertUser(ctx, username, hashedPassword)
}

func (s *Store) GetUser(ctx context.Context, id int) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetUser(ctx, id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetUserByUsername(ctx, username)
}

func (s *Store) UpdateProfile(ctx context.Context, id int, profile users.Profile) (users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpdateProfile(ctx, id, profile)
}

func (s *Store) ListUsers(ctx context.Context) ([]users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListUsers(ctx)
}

func (s *Store) InsertOrder(ctx context.Context, order orders.Order) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().InsertOrder(ctx, order)
}

func (s *Store) GetOrder(ctx context.Context, id int) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetOrder(ctx, id)
}

// LockOrder is GetOrder. Outside of Transact there is nothing to lock for.
func (s *Store) LockOrder(ctx context.Context, id int) (orders.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *Store) DeleteOrder(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().DeleteOrder(ctx, id)
}

func (s *Store) ApproveOrder(ctx context.Context, id, approverID int) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ApproveOrder(ctx, id, approverID)
}

func (s *Store) ListOrders(ctx context.Context) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListOrders(ctx)
}

func (s *Store) ApprovedBetween(ctx context.Context, first, second int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ApprovedBetween(ctx, first, second)
}

func (s *Store) InsertNotification(ctx context.Context, n notifications.Notification) (notifications.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().InsertNotification(ctx, n)
}

func (s *Store) ListNotifications(ctx context.Context, userID int) ([]notifications.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListNotifications(ctx, userID)
}
