package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

// NotificationRepository implements domain.NotificationRepository with sqlx
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
		INSERT INTO notifications (user_id, message, type, is_read, sent_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`
	if err := get(ctx, r.db, &n.ID, query, n.UserID, n.Message, n.Type, n.IsRead, n.SentAt); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListByUser returns the newest notifications first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error) {
	query := `SELECT id, user_id, message, type, is_read, sent_at FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY sent_at DESC, id DESC`

	out := []*domain.Notification{}
	if err := selectAll(ctx, r.db, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, userID string, id int64) error {
	rows, err := exec(ctx, r.db, `UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?`, true, id, userID)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: notification %d", domain.ErrNotFound, id)
	}
	return nil
}
