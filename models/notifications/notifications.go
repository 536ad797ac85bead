// Package notifications is the per-user message feed. Notifications are only
// ever appended, and read newest first.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/satswap/satswap/db"
	"github.com/satswap/satswap/models/orders"
)

// Notification is a database table
type Notification struct {
	ID        int       `db:"id" json:"id"`
	UserID    int       `db:"user_id" json:"userId"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// MaxMessageLength is the longest message the notifications table accepts
const MaxMessageLength = 500

// New builds a notification for the given user, truncating overly long
// messages
func New(userID int, message string) Notification {
	if runes := []rune(message); len(runes) > MaxMessageLength {
		message = string(runes[:MaxMessageLength])
	}
	return Notification{UserID: userID, Message: message}
}

// amount renders the order amount in satoshis and in BTC
func amount(order orders.Order) string {
	return fmt.Sprintf("%d satoshis (%s)", order.Amount, order.Satoshis())
}

// OrderPlaced tells the owner their order is on the board
func OrderPlaced(order orders.Order) Notification {
	return New(order.UserID, fmt.Sprintf("%s order for %s placed.",
		order.Type.Title(), amount(order)))
}

// OrderWithdrawn tells the owner their order is gone
func OrderWithdrawn(order orders.Order) Notification {
	return New(order.UserID, fmt.Sprintf("%s order for %s removed.",
		order.Type.Title(), amount(order)))
}

// OrderApprovedByYou tells the approver which order they approved
func OrderApprovedByYou(order orders.Order, approverID int, ownerUsername string) Notification {
	return New(approverID, fmt.Sprintf("You approved %s's order for %s.",
		ownerUsername, amount(order)))
}

// YourOrderApproved tells the owner who approved their order
func YourOrderApproved(order orders.Order, approverUsername string) Notification {
	return New(order.UserID, fmt.Sprintf("%s approved your order for %s.",
		approverUsername, amount(order)))
}

// Insert appends a notification to the feed of its user
func Insert(ctx context.Context, q db.Querier, n Notification) (Notification, error) {
	query := `INSERT INTO notifications (user_id, message)
		VALUES ($1, $2) RETURNING id, user_id, message, created_at`

	var inserted Notification
	if err := sqlx.GetContext(ctx, q, &inserted, query, n.UserID, n.Message); err != nil {
		return Notification{}, errors.Wrapf(err, "could not insert notification for user %d", n.UserID)
	}
	return inserted, nil
}

// ListForUser returns every notification of the given user, newest first
func ListForUser(ctx context.Context, q db.Querier, userID int) ([]Notification, error) {
	query := `SELECT id, user_id, message, created_at FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC`

	result := []Notification{}
	if err := sqlx.SelectContext(ctx, q, &result, query, userID); err != nil {
		return nil, errors.Wrapf(err, "could not list notifications for user %d", userID)
	}
	return result, nil
}
