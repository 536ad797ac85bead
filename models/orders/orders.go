package orders

import (
	"context"
	"database/sql"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/satswap/satswap/build"
	"github.com/satswap/satswap/db"
	"github.com/satswap/satswap/models/users"
)

var log = build.AddSubLogger("ORDR")

// Type is the side of an order
type Type string

const (
	Buy  Type = "buy"
	Sell Type = "sell"
)

// ParseType converts the given string into an order type
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case Buy, Sell:
		return t, nil
	default:
		return "", ErrInvalidOrderType
	}
}

// Title is the type with a capital first letter, for user facing messages
func (t Type) Title() string {
	switch t {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	default:
		return string(t)
	}
}

// Order amounts are bounded, both ends inclusive
const (
	MinAmount btcutil.Amount = 1000
	MaxAmount btcutil.Amount = 10000
)

// Order is a database table
type Order struct {
	ID     int   `db:"id" json:"id"`
	UserID int   `db:"user_id" json:"userId"`
	Type   Type  `db:"order_type" json:"type"`
	Amount int64 `db:"amount" json:"amount"`

	IsApproved bool `db:"is_approved" json:"isApproved"`
	// ApprovedBy is the user that approved the order, if any. Never the
	// owner of the order.
	ApprovedBy *int `db:"approved_by" json:"approvedBy"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Satoshis is the amount of the order
func (o Order) Satoshis() btcutil.Amount {
	return btcutil.Amount(o.Amount)
}

// IsPending is true until someone approves the order
func (o Order) IsPending() bool {
	return !o.IsApproved
}

// Exported errors
var (
	ErrInvalidAmount    = errors.Errorf("order amount must be between %d and %d satoshis", int64(MinAmount), int64(MaxAmount))
	ErrInvalidOrderType = errors.New("order type must be buy or sell")
	ErrOrderNotFound    = errors.New("order not found")
	ErrNotOwner         = errors.New("only the owner can withdraw an order")
	ErrSelfApproval     = errors.New("cannot approve your own order")
	ErrAlreadyApproved  = errors.New("order is already approved")
)

// New validates the given values and returns a pending order, ready to be
// inserted
func New(ownerID int, orderType string, amount int64) (Order, error) {
	t, err := ParseType(orderType)
	if err != nil {
		return Order{}, err
	}
	if sats := btcutil.Amount(amount); sats < MinAmount || sats > MaxAmount {
		return Order{}, ErrInvalidAmount
	}
	return Order{
		UserID: ownerID,
		Type:   t,
		Amount: amount,
	}, nil
}

// CheckWithdraw verifies that the requester may delete the order
func CheckWithdraw(order Order, requesterID int) error {
	if order.UserID != requesterID {
		return ErrNotOwner
	}
	return nil
}

// CheckApprove verifies that the approver may approve the order. The checks
// run in a fixed order: profile, ownership, state.
func CheckApprove(order Order, approver users.User) error {
	if !approver.HasCompleteProfile() {
		return users.ErrIncompleteProfile
	}
	if order.UserID == approver.ID {
		return ErrSelfApproval
	}
	if order.IsApproved {
		return ErrAlreadyApproved
	}
	return nil
}

const (
	orderColumns = "id, user_id, order_type, amount, is_approved, approved_by, created_at, updated_at"

	selectFromOrdersTable = "SELECT " + orderColumns + " FROM orders"
)

// Insert stores a new pending order
func Insert(ctx context.Context, q db.Querier, order Order) (Order, error) {
	query := `INSERT INTO orders (user_id, order_type, amount)
		VALUES ($1, $2, $3) RETURNING ` + orderColumns

	var inserted Order
	if err := sqlx.GetContext(ctx, q, &inserted, query, order.UserID, order.Type, order.Amount); err != nil {
		return Order{}, errors.Wrap(err, "could not insert order")
	}

	log.WithFields(logrus.Fields{
		"orderId": inserted.ID,
		"userId":  inserted.UserID,
		"type":    inserted.Type,
		"amount":  inserted.Satoshis().String(),
	}).Info("Placed order")
	return inserted, nil
}

// GetByID selects the order with the given ID
func GetByID(ctx context.Context, q db.Querier, id int) (Order, error) {
	return get(ctx, q, selectFromOrdersTable+" WHERE id=$1", id)
}

// GetByIDForUpdate selects the order with the given ID and locks the row
// until the surrounding transaction ends
func GetByIDForUpdate(ctx context.Context, q db.Querier, id int) (Order, error) {
	return get(ctx, q, selectFromOrdersTable+" WHERE id=$1 FOR UPDATE", id)
}

func get(ctx context.Context, q db.Querier, query string, id int) (Order, error) {
	var order Order
	if err := sqlx.GetContext(ctx, q, &order, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, errors.Wrapf(err, "could not get order %d", id)
	}
	return order, nil
}

// Delete removes the order with the given ID
func Delete(ctx context.Context, q db.Querier, id int) error {
	res, err := q.ExecContext(ctx, "DELETE FROM orders WHERE id=$1", id)
	if err != nil {
		return errors.Wrapf(err, "could not delete order %d", id)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "could not get affected rows")
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	log.WithField("orderId", id).Info("Deleted order")
	return nil
}

// Approve marks a pending order as approved by the given user. The update is
// a compare-and-set: if the order was approved in the meantime, or the
// approver owns it, nothing changes and the appropriate error is returned.
func Approve(ctx context.Context, q db.Querier, id, approverID int) (Order, error) {
	query := `UPDATE orders
		SET is_approved = true, approved_by = $2, updated_at = now()
		WHERE id = $1 AND is_approved = false AND user_id <> $2
		RETURNING ` + orderColumns

	var approved Order
	err := sqlx.GetContext(ctx, q, &approved, query, id, approverID)
	if err == nil {
		log.WithFields(logrus.Fields{
			"orderId":    id,
			"approvedBy": approverID,
		}).Info("Approved order")
		return approved, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Order{}, errors.Wrapf(err, "could not approve order %d", id)
	}

	// nothing was updated, find out why
	current, err := GetByID(ctx, q, id)
	if err != nil {
		return Order{}, err
	}
	if current.UserID == approverID {
		return Order{}, ErrSelfApproval
	}
	return Order{}, ErrAlreadyApproved
}

// GetAll returns every order, newest first
func GetAll(ctx context.Context, q db.Querier) ([]Order, error) {
	result := []Order{}
	query := selectFromOrdersTable + " ORDER BY created_at DESC, id DESC"
	if err := sqlx.SelectContext(ctx, q, &result, query); err != nil {
		return nil, errors.Wrap(err, "could not get orders")
	}
	return result, nil
}

// ApprovedBetween is true if an approved order exists where one of the users
// owns the order and the other approved it
func ApprovedBetween(ctx context.Context, q db.Querier, first, second int) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM orders
		WHERE is_approved = true AND (
			(user_id = $1 AND approved_by = $2) OR
			(user_id = $2 AND approved_by = $1)
		)
	)`

	var exists bool
	if err := sqlx.GetContext(ctx, q, &exists, query, first, second); err != nil {
		return false, errors.Wrapf(err, "could not look up approved orders between %d and %d", first, second)
	}
	return exists, nil
}
