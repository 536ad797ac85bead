// Package trading is the order and approval workflow. Every operation takes
// the acting user explicitly and runs as a single storage transaction.
package trading

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/satswap/satswap/build"
	"github.com/satswap/satswap/metrics"
	"github.com/satswap/satswap/models/notifications"
	"github.com/satswap/satswap/models/orders"
	"github.com/satswap/satswap/models/users"
	"github.com/satswap/satswap/storage"
)

var log = build.AddSubLogger("TRDE")

// ErrProfileHidden means the viewer has no approved trade with the owner of
// the profile
var ErrProfileHidden = errors.New("profile is only visible to trading partners")

// Service runs the trading workflow against a store
type Service struct {
	store storage.Store
}

// NewService returns a Service persisting to the given store
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// PlaceOrder puts a new pending order on the board. The owner must have a
// complete profile, and gets notified.
func (s *Service) PlaceOrder(ctx context.Context, userID int, orderType string, amount int64) (orders.Order, error) {
	var placed orders.Order
	err := s.store.Transact(ctx, func(tx storage.Store) error {
		owner, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if !owner.HasCompleteProfile() {
			return users.ErrIncompleteProfile
		}

		order, err := orders.New(owner.ID, orderType, amount)
		if err != nil {
			return err
		}

		if placed, err = tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		_, err = tx.InsertNotification(ctx, notifications.OrderPlaced(placed))
		return err
	})
	if err != nil {
		return orders.Order{}, err
	}

	metrics.RecordTradingEvent(metrics.OrderPlaced, placed.Amount)
	return placed, nil
}

// WithdrawOrder deletes an order of the requester, pending or approved. The
// owner is notified before the order goes away.
func (s *Service) WithdrawOrder(ctx context.Context, userID, orderID int) error {
	var withdrawn orders.Order
	err := s.store.Transact(ctx, func(tx storage.Store) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := orders.CheckWithdraw(order, userID); err != nil {
			return err
		}

		if _, err := tx.InsertNotification(ctx, notifications.OrderWithdrawn(order)); err != nil {
			return err
		}
		withdrawn = order
		return tx.DeleteOrder(ctx, order.ID)
	})
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"orderId":    withdrawn.ID,
		"wasPending": withdrawn.IsPending(),
	}).Info("Order withdrawn")
	metrics.RecordTradingEvent(metrics.OrderWithdrawn, withdrawn.Amount)
	return nil
}

// Approve approves someone else's pending order. Both parties are notified
// and can view each other's profile from then on.
func (s *Service) Approve(ctx context.Context, userID, orderID int) (orders.Order, error) {
	var approved orders.Order
	err := s.store.Transact(ctx, func(tx storage.Store) error {
		order, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		approver, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := orders.CheckApprove(order, approver); err != nil {
			return err
		}

		owner, err := tx.GetUser(ctx, order.UserID)
		if err != nil {
			return errors.Wrapf(err, "owner of order %d", order.ID)
		}

		if approved, err = tx.ApproveOrder(ctx, order.ID, approver.ID); err != nil {
			return err
		}

		if _, err := tx.InsertNotification(ctx,
			notifications.OrderApprovedByYou(approved, approver.ID, owner.Username)); err != nil {
			return err
		}
		_, err = tx.InsertNotification(ctx, notifications.YourOrderApproved(approved, approver.Username))
		return err
	})
	if err != nil {
		return orders.Order{}, err
	}

	metrics.RecordTradingEvent(metrics.OrderApproved, approved.Amount)
	return approved, nil
}

// CanViewProfile is true if the viewer is the target, or the two of them
// share an approved order
func (s *Service) CanViewProfile(ctx context.Context, viewerID, targetID int) (bool, error) {
	if viewerID == targetID {
		return true, nil
	}
	return s.store.ApprovedBetween(ctx, viewerID, targetID)
}

// ViewProfile returns the target user if the viewer may see their profile
func (s *Service) ViewProfile(ctx context.Context, viewerID, targetID int) (users.User, error) {
	target, err := s.store.GetUser(ctx, targetID)
	if err != nil {
		return users.User{}, err
	}

	visible, err := s.CanViewProfile(ctx, viewerID, targetID)
	if err != nil {
		return users.User{}, err
	}
	if !visible {
		return users.User{}, ErrProfileHidden
	}

	if viewerID != targetID {
		metrics.RecordTradingEvent(metrics.ProfileViewed, 0)
	}
	return target, nil
}

// ListOrders is the public order board, newest first
func (s *Service) ListOrders(ctx context.Context) ([]orders.Order, error) {
	return s.store.ListOrders(ctx)
}

// Notifications is the feed of the given user, newest first
func (s *Service) Notifications(ctx context.Context, userID int) ([]notifications.Notification, error) {
	return s.store.ListNotifications(ctx, userID)
}

// Dashboard is everything the home page shows
type Dashboard struct {
	User          users.User                   `json:"user"`
	Orders        []orders.Order               `json:"orders"`
	Notifications []notifications.Notification `json:"notifications"`
}

// Dashboard collects the user, the order board and the user's notifications
func (s *Service) Dashboard(ctx context.Context, userID int) (Dashboard, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	board, err := s.store.ListOrders(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	feed, err := s.store.ListNotifications(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{User: user, Orders: board, Notifications: feed}, nil
}
