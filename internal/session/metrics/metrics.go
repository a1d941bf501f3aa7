package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the session feature's prometheus instruments.
type Metrics struct {
	IssuedTotal        prometheus.Counter
	RefreshedTotal     prometheus.Counter
	FlaggedTotal       prometheus.Counter
	ValidationFailures *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		IssuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_session_issued_total",
			Help: "Total session tokens issued",
		}),
		RefreshedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_session_refreshed_total",
			Help: "Total session tokens transparently refreshed",
		}),
		FlaggedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_session_flagged_disabled_total",
			Help: "Total sessions flagged DISABLED_ACCOUNT during refresh",
		}),
		ValidationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_session_validation_failures_total",
			Help: "Total session validation failures by reason",
		}, []string{"reason"}),
	}
}
