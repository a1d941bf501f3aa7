package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the rate limiter's prometheus instruments.
type Metrics struct {
	ChecksTotal            *prometheus.CounterVec
	DeniedTotal            *prometheus.CounterVec
	GlobalThrottledTotal   prometheus.Counter
	CleanupRunsTotal       *prometheus.CounterVec
	CleanupRemovedTotal    prometheus.Counter
	CleanupDurationSeconds prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_checks_total",
			Help: "Total rate limit checks by endpoint class",
		}, []string{"class"}),
		DeniedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_denied_total",
			Help: "Total rate limit denials by endpoint class",
		}, []string{"class"}),
		GlobalThrottledTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_global_throttled_total",
			Help: "Total requests rejected by the global throttle",
		}),
		CleanupRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_cleanup_runs_total",
			Help: "Total counter cleanup runs by status",
		}, []string{"status"}),
		CleanupRemovedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_ratelimit_cleanup_removed_total",
			Help: "Total expired counter windows removed by cleanup",
		}),
		CleanupDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name: "gatehouse_ratelimit_cleanup_duration_seconds",
			Help: "Duration of counter cleanup runs in seconds",
		}),
	}
}

func (m *Metrics) RecordCheck(class string, allowed bool) {
	m.ChecksTotal.WithLabelValues(class).Inc()
	if !allowed {
		m.DeniedTotal.WithLabelValues(class).Inc()
	}
}
