// Package dummy populates a store with demo traders, orders and approvals
package dummy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/satswap/satswap/accounts"
	"github.com/satswap/satswap/build"
	"github.com/satswap/satswap/models/orders"
	"github.com/satswap/satswap/models/users"
	"github.com/satswap/satswap/storage"
	"github.com/satswap/satswap/trading"
)

var log = build.AddSubLogger("DMMY")

// The demo user can log in with these credentials
const (
	DemoUsername = "satoshi"
	DemoPassword = "password"
)

const (
	userCount = 10
	minOrders = 1
	maxOrders = 4
)

// FillWithData populates the store with dummy data. With onlyOnce set,
// nothing happens if the store already has users.
func FillWithData(ctx context.Context, store storage.Store, onlyOnce bool) error {
	log.WithField("onlyOnce", onlyOnce).Info("Populating store with dummy data")
	gofakeit.Seed(time.Now().UnixNano())

	if onlyOnce {
		found, err := store.ListUsers(ctx)
		if err != nil {
			return err
		}
		if len(found) != 0 {
			log.Info("Store has data, not populating with further data")
			return nil
		}
	}

	acc := accounts.NewService(store)
	trade := trading.NewService(store)

	if _, err := store.GetUserByUsername(ctx, DemoUsername); errors.Is(err, users.ErrUserNotFound) {
		log.Debug("Creating demo user")
		demo, err := createTrader(ctx, acc, DemoUsername, DemoPassword)
		if err != nil {
			return err
		}
		createOrdersForUser(ctx, trade, demo)
	} else if err != nil {
		return err
	} else {
		log.Debug("Not creating demo user")
	}

	var wg sync.WaitGroup
	for u := 1; u <= userCount; u++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			username := fmt.Sprintf("%s%d", gofakeit.Username(), gofakeit.Number(0, 100000))
			trader, err := createTrader(ctx, acc, username,
				gofakeit.Password(true, true, true, true, false, 32))
			if err != nil {
				log.WithError(err).Error("Could not create user")
				return
			}
			log.WithField("userId", trader.ID).Debug("Generated user")
			createOrdersForUser(ctx, trade, trader)
		}()
	}
	wg.Wait()

	approved, err := approveSome(ctx, store, trade)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"userCount": userCount,
		"approved":  approved,
	}).Info("Created dummy data")
	return nil
}

func createTrader(ctx context.Context, acc *accounts.Service, username, password string) (users.User, error) {
	user, err := acc.Register(ctx, username, password)
	if err != nil {
		return users.User{}, err
	}
	return acc.UpdateProfile(ctx, user.ID, users.Profile{
		Name:            gofakeit.Name(),
		CardNumber:      fmt.Sprintf("6037%012d", gofakeit.Number(0, 999999999)),
		LightningWallet: fmt.Sprintf("%s@getalby.com", username),
		TelegramID:      "@" + username,
	})
}

func createOrdersForUser(ctx context.Context, trade *trading.Service, user users.User) {
	count := gofakeit.Number(minOrders, maxOrders)
	for i := 0; i < count; i++ {
		orderType := orders.Buy
		if gofakeit.Bool() {
			orderType = orders.Sell
		}
		// round amounts, like people would post them
		amount := int64(gofakeit.Number(int(orders.MinAmount)/100, int(orders.MaxAmount)/100)) * 100

		order, err := trade.PlaceOrder(ctx, user.ID, string(orderType), amount)
		if err != nil {
			log.WithError(err).Error("Could not place dummy order")
			continue
		}
		log.WithFields(logrus.Fields{
			"userId":  user.ID,
			"orderId": order.ID,
		}).Debug("Placed dummy order")
	}
}

// approveSome lets random users approve about a third of the pending orders
func approveSome(ctx context.Context, store storage.Store, trade *trading.Service) (int, error) {
	all, err := store.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	board, err := store.ListOrders(ctx)
	if err != nil {
		return 0, err
	}
	if len(all) < 2 {
		return 0, nil
	}

	approved := 0
	for _, order := range board {
		if !order.IsPending() || gofakeit.Number(0, 2) != 0 {
			continue
		}
		approver := all[gofakeit.Number(0, len(all)-1)]
		if approver.ID == order.UserID {
			continue
		}
		if _, err := trade.Approve(ctx, approver.ID, order.ID); err != nil {
			log.WithError(err).WithField("orderId", order.ID).Warn("Could not approve dummy order")
			continue
		}
		approved++
	}
	return approved, nil
}
