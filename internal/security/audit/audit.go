package audit

import (
	"context"
	"log/slog"
	"time"
)

type requestIDKey struct{}

// WithRequestID stores the request id picked up by audit lines
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id stored by WithRequestID, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type Logger struct {
	logger *slog.Logger
}

func NewLogger(logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{logger: logger.With(slog.String("component", "audit"))}
}

func (al *Logger) LogAction(ctx context.Context, userID, action, resource, resourceID, status, details string) {
	al.logger.Info("audit",
		slog.String("action", action),
		slog.String("resource", resource),
		slog.String("resource_id", resourceID),
		slog.String("user_id", userID),
		slog.String("status", status),
		slog.String("details", details),
		slog.String("request_id", RequestID(ctx)),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

func (al *Logger) LogReservation(ctx context.Context, userID, action, reservationID, status string) {
	al.LogAction(ctx, userID, action, "reservation", reservationID, status, "")
}

func (al *Logger) LogPharmacy(ctx context.Context, userID, action, pharmacyID, status string) {
	al.LogAction(ctx, userID, action, "pharmacy", pharmacyID, status, "")
}

func (al *Logger) LogDenied(ctx context.Context, userID, reason string) {
	al.LogAction(ctx, userID, "access_denied", "api", "", "denied", reason)
}
