// Package cleanup periodically sweeps expired rate-limit windows so the
// counter map cannot grow without bound. Correctness never depends on the
// sweep: expired windows are replaced lazily on the next request.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"gatehouse/internal/ratelimit/metrics"
)

// Sweeper removes expired counter windows and reports how many were dropped.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// Worker drives the periodic sweep.
type Worker struct {
	store    Sweeper
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Metrics
}

func New(store Sweeper, opts ...Option) *Worker {
	w := &Worker{
		store:    store,
		logger:   slog.Default(),
		interval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start runs the sweep loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			removed, err := w.store.Sweep(ctx)
			duration := time.Since(start)

			if err != nil {
				w.logger.Error("ratelimit_cleanup_failed",
					"error", err,
					"duration_ms", duration.Milliseconds(),
				)
				if w.metrics != nil {
					w.metrics.CleanupRunsTotal.WithLabelValues("error").Inc()
					w.metrics.CleanupDurationSeconds.Observe(duration.Seconds())
				}
				continue
			}

			if w.metrics != nil {
				w.metrics.CleanupRunsTotal.WithLabelValues("ok").Inc()
				w.metrics.CleanupRemovedTotal.Add(float64(removed))
				w.metrics.CleanupDurationSeconds.Observe(duration.Seconds())
			}
			if removed > 0 {
				w.logger.Info("ratelimit_cleanup_completed",
					"removed", removed,
					"duration_ms", duration.Milliseconds(),
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
