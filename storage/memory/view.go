package memory

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/satswap/satswap/models/notifications"
	"github.com/satswap/satswap/models/orders"
	"github.com/satswap/satswap/models/users"
	"github.com/satswap/satswap/storage"
)

// view operates on the state without any locking. The caller holds the lock.
type view struct {
	st  *state
	now func() time.Time
}

var _ storage.Store = &view{}

// Transact nests: the work joins the surrounding transaction
func (v *view) Transact(_ context.Context, fn func(tx storage.Store) error) error {
	return fn(v)
}

func (v *view) Ping(context.Context) error { return nil }

func (v *view) InsertUser(_ context.Context, username string, hashedPassword []byte) (users.User, error) {
	for _, existing := range v.st.users {
		if existing.Username == username {
			return users.User{}, users.ErrUsernameTaken
		}
	}

	v.st.lastUserID++
	now := v.now()
	user := users.User{
		ID:             v.st.lastUserID,
		Username:       username,
		HashedPassword: append([]byte(nil), hashedPassword...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	v.st.users[user.ID] = user
	return user, nil
}

func (v *view) GetUser(_ context.Context, id int) (users.User, error) {
	user, ok := v.st.users[id]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return user, nil
}

func (v *view) GetUserByUsername(_ context.Context, username string) (users.User, error) {
	for _, user := range v.st.users {
		if user.Username == username {
			return user, nil
		}
	}
	return users.User{}, users.ErrUserNotFound
}

func (v *view) UpdateProfile(_ context.Context, id int, profile users.Profile) (users.User, error) {
	user, ok := v.st.users[id]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}

	nullable := func(s string) *string {
		if s == "" {
			return nil
		}
		return &s
	}
	user.Name = nullable(profile.Name)
	user.CardNumber = nullable(profile.CardNumber)
	user.LightningWallet = nullable(profile.LightningWallet)
	user.TelegramID = nullable(profile.TelegramID)
	user.UpdatedAt = v.now()

	v.st.users[id] = user
	return user, nil
}

func (v *view) ListUsers(context.Context) ([]users.User, error) {
	result := make([]users.User, 0, len(v.st.users))
	for _, user := range v.st.users {
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (v *view) InsertOrder(_ context.Context, order orders.Order) (orders.Order, error) {
	if _, ok := v.st.users[order.UserID]; !ok {
		return orders.Order{}, errors.Wrapf(users.ErrUserNotFound, "order owner %d", order.UserID)
	}

	v.st.lastOrderID++
	now := v.now()
	order.ID = v.st.lastOrderID
	order.IsApproved = false
	order.ApprovedBy = nil
	order.CreatedAt = now
	order.UpdatedAt = now

	v.st.orders[order.ID] = order
	return order, nil
}

func (v *view) GetOrder(_ context.Context, id int) (orders.Order, error) {
	order, ok := v.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return order, nil
}

func (v *view) LockOrder(ctx context.Context, id int) (orders.Order, error) {
	return v.GetOrder(ctx, id)
}

func (v *view) DeleteOrder(_ context.Context, id int) error {
	if _, ok := v.st.orders[id]; !ok {
		return orders.ErrOrderNotFound
	}
	delete(v.st.orders, id)
	return nil
}

func (v *view) ApproveOrder(_ context.Context, id, approverID int) (orders.Order, error) {
	order, ok := v.st.orders[id]
	switch {
	case !ok:
		return orders.Order{}, orders.ErrOrderNotFound
	case order.UserID == approverID:
		return orders.Order{}, orders.ErrSelfApproval
	case order.IsApproved:
		return orders.Order{}, orders.ErrAlreadyApproved
	}
	if _, ok := v.st.users[approverID]; !ok {
		return orders.Order{}, errors.Wrapf(users.ErrUserNotFound, "approver %d", approverID)
	}

	approver := approverID
	order.IsApproved = true
	order.ApprovedBy = &approver
	order.UpdatedAt = v.now()

	v.st.orders[id] = order
	return order, nil
}

func (v *view) ListOrders(context.Context) ([]orders.Order, error) {
	result := make([]orders.Order, 0, len(v.st.orders))
	for _, order := range v.st.orders {
		result = append(result, order)
	}
	sort.Slice(result, func(i, j int) bool {
		return newerThan(result[i].CreatedAt, result[i].ID, result[j].CreatedAt, result[j].ID)
	})
	return result, nil
}

func (v *view) ApprovedBetween(_ context.Context, first, second int) (bool, error) {
	for _, order := range v.st.orders {
		if !order.IsApproved || order.ApprovedBy == nil {
			continue
		}
		approver := *order.ApprovedBy
		if (order.UserID == first && approver == second) ||
			(order.UserID == second && approver == first) {
			return true, nil
		}
	}
	return false, nil
}

func (v *view) InsertNotification(_ context.Context, n notifications.Notification) (notifications.Notification, error) {
	if _, ok := v.st.users[n.UserID]; !ok {
		return notifications.Notification{}, errors.Wrapf(users.ErrUserNotFound, "notification recipient %d", n.UserID)
	}

	v.st.lastNotificationID++
	n.ID = v.st.lastNotificationID
	n.CreatedAt = v.now()
	v.st.notifications = append(v.st.notifications, n)
	return n, nil
}

func (v *view) ListNotifications(_ context.Context, userID int) ([]notifications.Notification, error) {
	result := []notifications.Notification{}
	for _, n := range v.st.notifications {
		if n.UserID == userID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return newerThan(result[i].CreatedAt, result[i].ID, result[j].CreatedAt, result[j].ID)
	})
	return result, nil
}

// newerThan orders by creation time, then ID, both descending
func newerThan(aTime time.Time, aID int, bTime time.Time, bID int) bool {
	if !aTime.Equal(bTime) {
		return aTime.After(bTime)
	}
	return aID > bID
}
