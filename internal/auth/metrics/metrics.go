package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the auth feature's prometheus instruments.
type Metrics struct {
	LoginSuccessTotal    prometheus.Counter
	LoginFailureTotal    *prometheus.CounterVec
	LockoutsTotal        prometheus.Counter
	FailuresRecorded     prometheus.Counter
	RegistrationsTotal   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		LoginSuccessTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_auth_login_success_total",
			Help: "Total successful logins",
		}),
		LoginFailureTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatehouse_auth_login_failure_total",
			Help: "Total failed logins by reason",
		}, []string{"reason"}),
		LockoutsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_auth_lockouts_total",
			Help: "Total account lockouts triggered",
		}),
		FailuresRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_auth_failures_recorded_total",
			Help: "Total auth failures recorded against accounts",
		}),
		RegistrationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatehouse_auth_registrations_total",
			Help: "Total accounts registered",
		}),
	}
}

// IncrementLockouts satisfies the guard's metrics hook.
func (m *Metrics) IncrementLockouts() {
	m.LockoutsTotal.Inc()
}

// IncrementFailuresRecorded satisfies the guard's metrics hook.
func (m *Metrics) IncrementFailuresRecorded() {
	m.FailuresRecorded.Inc()
}
