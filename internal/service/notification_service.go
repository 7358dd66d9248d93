package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
)

// NotificationService stores in-app notifications. Delivery beyond the
// change relay is out of scope.
type NotificationService struct {
	notifications domain.NotificationRepository
	events        domain.EventPublisher
	logger        *slog.Logger
	now           func() time.Time
}

func NewNotificationService(notifications domain.NotificationRepository, events domain.EventPublisher, logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	if events == nil {
		events = domain.NopPublisher{}
	}
	return &NotificationService{
		notifications: notifications,
		events:        events,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// Notify records a notification for userID and announces it on the relay
func (s *NotificationService) Notify(ctx context.Context, userID, kind, message string) (*domain.Notification, error) {
	n := &domain.Notification{
		UserID:  userID,
		Message: message,
		Type:    kind,
		SentAt:  s.now(),
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		s.logger.Error("failed to create notification",
			slog.String("user_id", userID),
			slog.String("type", kind),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	s.events.Publish(ctx, domain.NewChangeEvent(domain.TopicNotifications, domain.EventInsert, nil, n, n.SentAt))
	return n, nil
}

// List returns the notifications of userID, newest first
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]*domain.Notification, error) {
	return s.notifications.ListByUser(ctx, userID, unreadOnly)
}

// MarkRead flags a notification as read. Someone else's notification is ErrNotFound.
func (s *NotificationService) MarkRead(ctx context.Context, userID string, id int64) error {
	return s.notifications.MarkRead(ctx, userID, id)
}
