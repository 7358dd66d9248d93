package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kekelo17/Swift-Meds-sub000/internal/observability/metrics"
	"github.com/kekelo17/Swift-Meds-sub000/internal/reliability/retry"
)

// Expirer cancels reservations past their expiry
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// ExpiryWorker periodically cancels expired reservations so their stock and
// status settle even when nobody reads them
type ExpiryWorker struct {
	expirer  Expirer
	logger   *slog.Logger
	interval time.Duration
	retry    *retry.Config
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(expirer Expirer, logger *slog.Logger, interval time.Duration) *ExpiryWorker {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := retry.DefaultConfig()
	cfg.MaxBackoff = interval / 2
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	return &ExpiryWorker{
		expirer:  expirer,
		logger:   logger,
		interval: interval,
		retry:    cfg,
	}
}

// Start runs a sweep every interval until ctx is cancelled. A non-positive
// interval disables the worker.
func (w *ExpiryWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("expiry worker disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("expiry worker started", slog.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one expiry pass and returns the number of cancelled reservations
func (w *ExpiryWorker) Sweep(ctx context.Context) int {
	start := time.Now()
	n, err := retry.Do[int](ctx, w.retry, w.logger, "expire_reservations", w.expirer.ExpireDue)
	if errors.Is(err, context.Canceled) {
		return 0
	}
	if err != nil {
		metrics.ObserveExpirySweep("error")
		w.logger.Error("expiry sweep failed", slog.String("error", err.Error()))
		return 0
	}

	metrics.ObserveExpirySweep("ok")
	if n > 0 {
		w.logger.Info("expiry sweep completed",
			slog.Int("expired", n),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return n
}
