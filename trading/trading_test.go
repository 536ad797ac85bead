package trading

import (
	"context"
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satswap/satswap/models/notifications"
	"github.com/satswap/satswap/models/orders"
	"github.com/satswap/satswap/models/users"
	"github.com/satswap/satswap/storage"
	"github.com/satswap/satswap/storage/memory"
)

var ctx = context.Background()

func createUser(t *testing.T, store storage.Store, username string, complete bool) users.User {
	t.Helper()
	u, err := store.InsertUser(ctx, username, []byte("hash"))
	require.NoError(t, err)
	if !complete {
		return u
	}
	u, err = store.UpdateProfile(ctx, u.ID, users.Profile{
		Name:            gofakeit.Name(),
		CardNumber:      "6037991234567890",
		LightningWallet: username + "@getalby.com",
		TelegramID:      "@" + username,
	})
	require.NoError(t, err)
	return u
}

func feed(t *testing.T, store storage.Store, userID int) []notifications.Notification {
	t.Helper()
	list, err := store.ListNotifications(ctx, userID)
	require.NoError(t, err)
	return list
}

func TestPlaceOrder(t *testing.T) {
	t.Parallel()
	store := memory.New()
	s := NewService(store)
	ali := createUser(t, store, "ali", true)

	order, err := s.PlaceOrder(ctx, ali.ID, "buy", 5000)
	require.NoError(t, err)
	assert.Equal(t, ali.ID, order.UserID)
	assert.False(t, order.IsApproved)
	assert.Nil(t, order.ApprovedBy)

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order, stored)

	notes := feed(t, store, ali.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, "Buy order for 5000 satoshis (0.00005 BTC) placed.", notes[0].Message)
}

func TestPlaceOrderRejectsBadAmounts(t *testing.T) {
	t.Parallel()
	store := memory.New()
	s := NewService(store)
	ali := createUser(t, store, "ali", true)

	for _, amount := range []int64{500, 999, 10001} {
		_, err := s.PlaceOrder(ctx, ali.ID, "sell", amount)
		assert.Equal(t, orders.ErrInvalidAmount, err, "amount %d", amount)
	}
	_, err := s.PlaceOrder(ctx, ali.ID, "swap", 5000)
	assert.Equal(t, orders.ErrInvalidOrderType, err)

	board, err := store.ListOrders(ctx)
	require.NoError(t, err)
	assert.Empty(t, board, "no order is created")
	assert.Empty(t, feed(t, store, ali.ID), "no notification is created")
}

func TestPlaceOrderRequiresCompleteProfile(t *testing.T) {
	t.Parallel()
	store := memory.New()
	s := NewService(store)
	newbie := createUser(t, store, "newbie", false)

	_, err := s.PlaceOrder(ctx, newbie.ID, "buy", 5000)
	assert.Equal(t, users.ErrIncompleteProfile, err)

	_, err = s.PlaceOrder(ctx, newbie.ID+100, "buy", 5000)
	assert.Equal(t, users.ErrUserNotFound, err)
}

func TestWithdrawOrder(t *testing.T) {
	t.Parallel()
	store := memory.New()
	s := NewService(store)
	ali := createUser(t, store, "ali", true)
	bob := createUser(t, store, "bob", true)

	order, err := s.PlaceOrder(ctx, ali.ID, "sell", 3000)
	require.NoError(t, err)

	assert.Equal(t, orders.ErrNotOwner, s.WithdrawOrder(ctx, bob.ID, order.ID))
	assert.Equal(t, orders.ErrOrderNotFound, s.WithdrawOrder(ctx, ali.ID, order.ID+1))

	require.NoError(t, s.WithdrawOrder(ctx, ali.ID, order.ID))
	_, err = store.GetOrder(ctx, order.ID)
	assert.Equal(t, orders.ErrOrderNotFound, err)

	notes := feed(t, store, ali.ID)
	require.Len(t, notes, 2, "placed and removed")
	assert.Equal(t, "Sell order for 3000 satoshis (0.00003 BTC) removed.", notes[0].Message)
	assert.Empty(t, feed(t, store, bob.ID))
}

func TestWithdrawApprovedOrder(t *testing.T) {
	t.Parallel()
	store := memory.New()
	s := NewService(store)
	ali := createUser(t, store, "ali", true)
	bob := createUser(t, store, "bob", true)

	order, err := s.PlaceOrder(ctx, ali.ID, "buy", 4000)
	require.NoError(t, err)
	_, err = s.Approve(ctx, bob.ID, order.ID)
	require.NoError(t, err)

	require.NoError(t, s.WithdrawOrder(ctx, ali.ID, order.ID), "approved orders can be withdrawn")

	visible, err := s.CanViewProfile(ctx, bob.ID, ali.ID)
	require.NoError(t, err)
	assert.False(t, visible, "the trust relation goes away with the order")
}

func TestApproveScenario(t *testing.T) {
	t.Parallel()
	store := memory.New()
	s := NewService(store)
	ali := createUser(t, store, "ali", true)
	bob := createUser(t, store, "bob", true)

	order, err := s.PlaceOrder(ctx, ali.ID, "buy", 5000)
	require.NoError(t, err)

	for _, pair := range [][2]int{{ali.ID, bob.ID}, {bob.ID, ali.ID}} {
		visible, err := s.CanViewProfile(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.False(t, visible, "strangers can't see each other")
	}
	_, err = s.ViewProfile(ctx, bob.ID, ali.ID)
	assert.Equal(t, ErrProfileHidden, err)

	aliBefore := len(feed(t, store, ali.ID))
	bobBefore := len(feed(t, store, bob.ID))

	approved, err := s.Approve(ctx, bob.ID, order.ID)
	require.NoError(t, err)
	assert.True(t, approved.IsApproved)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, bob.ID, *approved.ApprovedBy)

	aliFeed := feed(t, store, ali.ID)
	bobFeed := feed(t, store, bob.ID)
	assert.Len(t, aliFeed, aliBefore+1)
	assert.Len(t, bobFeed, bobBefore+1)
	assert.Equal(t, "bob approved your order for 5000 satoshis (0.00005 BTC).", aliFeed[0].Message)
	assert.Equal(t, "You approved ali's order for 5000 satoshis (0.00005 BTC).", bobFeed[0].Message)

	for _, pair := range [][2]int{{ali.ID, bob.ID}, {bob.ID, ali.ID}} {
		visible, err := s.CanViewProfile(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, visible, "trading partners see each other")
	}

	profile, err := s.ViewProfile(ctx, bob.ID, ali.ID)
	require.NoError(t, err)
	assert.Equal(t, ali.Profile(), profile.Profile())
}

func TestApproveRejections(t *testing.T) {
	t.Parallel()
	store := memory.New()
	s := NewService(store)
	ali := createUser(t, store, "ali", true)
	bob := createUser(t, store, "bob", true)
	carol := createUser(t, store, "carol", true)
	newbie := createUser(t, store, "newbie", false)

	order, err := s.PlaceOrder(ctx, ali.ID, "sell", 2500)
	require.NoError(t, err)

	_, err = s.Approve(ctx, bob.ID, order.ID+1)
	assert.Equal(t, orders.ErrOrderNotFound, err)

	_, err = s.Approve(ctx, newbie.ID, order.ID)
	assert.Equal(t, users.ErrIncompleteProfile, err)

	_, err = s.Approve(ctx, ali.ID, order.ID)
	assert.Equal(t, orders.ErrSelfApproval, err)

	_, err = s.Approve(ctx, bob.ID, order.ID)
	require.NoError(t, err)
	bobFeed := feed(t, store, bob.ID)

	_, err = s.Approve(ctx, carol.ID, order.ID)
	assert.Equal(t, orders.ErrAlreadyApproved, err)
	_, err = s.Approve(ctx, bob.ID, order.ID)
	assert.Equal(t, orders.ErrAlreadyApproved, err)

	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, *stored.ApprovedBy, "state is unchanged")
	assert.Len(t, feed(t, store, bob.ID), len(bobFeed), "no new notifications")
	assert.Empty(t, feed(t, store, carol.ID))
}

func TestViewOwnProfile(t *testing.T) {
	t.Parallel()
	store := memory.New()
	s := NewService(store)
	newbie := createUser(t, store, "newbie", false)

	visible, err := s.CanViewProfile(ctx, newbie.ID, newbie.ID)
	require.NoError(t, err)
	assert.True(t, visible)

	_, err = s.ViewProfile(ctx, newbie.ID, newbie.ID+1)
	assert.Equal(t, users.ErrUserNotFound, err)
}

func TestDashboard(t *testing.T) {
	t.Parallel()
	store := memory.New()
	s := NewService(store)
	ali := createUser(t, store, "ali", true)
	bob := createUser(t, store, "bob", true)

	_, err := s.PlaceOrder(ctx, ali.ID, "buy", 1000)
	require.NoError(t, err)
	_, err = s.PlaceOrder(ctx, bob.ID, "sell", 10000)
	require.NoError(t, err)

	dash, err := s.Dashboard(ctx, ali.ID)
	require.NoError(t, err)
	assert.Equal(t, ali.ID, dash.User.ID)
	assert.Len(t, dash.Orders, 2, "the board shows every user's orders")
	assert.Len(t, dash.Notifications, 1, "only the user's own notifications")
}

// failingNotifications fails every notification insert, inside or outside
// a transaction
type failingNotifications struct {
	storage.Store
}

var errNotificationsDown = errors.New("notifications are down")

func (f failingNotifications) Transact(ctx context.Context, fn func(tx storage.Store) error) error {
	return f.Store.Transact(ctx, func(tx storage.Store) error {
		return fn(failingNotifications{Store: tx})
	})
}

func (f failingNotifications) InsertNotification(context.Context, notifications.Notification) (notifications.Notification, error) {
	return notifications.Notification{}, errNotificationsDown
}

func TestOperationsAreAtomic(t *testing.T) {
	t.Parallel()
	store := memory.New()
	ali := createUser(t, store, "ali", true)
	bob := createUser(t, store, "bob", true)
	order, err := NewService(store).PlaceOrder(ctx, ali.ID, "buy", 5000)
	require.NoError(t, err)

	broken := NewService(failingNotifications{Store: store})

	_, err = broken.PlaceOrder(ctx, ali.ID, "sell", 2000)
	assert.Equal(t, errNotificationsDown, err)
	board, err := store.ListOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, board, 1, "the order is not placed without its notification")

	_, err = broken.Approve(ctx, bob.ID, order.ID)
	assert.Equal(t, errNotificationsDown, err)
	stored, err := store.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsApproved, "the approval is rolled back")

	assert.Equal(t, errNotificationsDown, broken.WithdrawOrder(ctx, ali.ID, order.ID))
	_, err = store.GetOrder(ctx, order.ID)
	assert.NoError(t, err, "the order survives a failed withdrawal")
}
