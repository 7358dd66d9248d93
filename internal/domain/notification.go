package domain

import (
	"context"
	"time"
)

// Notification is an in-app message for a user
type Notification struct {
	ID      int64     `db:"id" json:"id"`
	UserID  string    `db:"user_id" json:"userId"`
	Message string    `db:"message" json:"message"`
	Type    string    `db:"type" json:"type"`
	IsRead  bool      `db:"is_read" json:"isRead"`
	SentAt  time.Time `db:"sent_at" json:"sentAt"`
}

const NotificationReservationConfirmed = "reservation_confirmed"

// NotificationRepository defines data access for notifications
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*Notification, error)
	// MarkRead returns ErrNotFound unless the notification belongs to userID
	MarkRead(ctx context.Context, userID string, id int64) error
}
