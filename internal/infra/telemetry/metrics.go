package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
)

const metricsNamespace = "timeclock"

// AuthMetrics holds the Prometheus collectors for login decisions.
type AuthMetrics struct {
	Logins *prometheus.CounterVec
	Verify prometheus.Histogram
}

// NewAuthMetrics registers the auth collectors with reg, reusing collectors
// that are already registered. A nil reg selects the default registerer.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "auth",
		Name:      "login_attempts_total",
		Help:      "Login attempts partitioned by outcome and internal reason.",
	}, []string{"outcome", "reason"})
	if err := reg.Register(logins); err != nil {
		existing, err := reuse[*prometheus.CounterVec](err)
		if err != nil {
			return nil, fmt.Errorf("register login counter: %w", err)
		}
		logins = existing
	}

	verify := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "auth",
		Name:      "pin_verify_duration_seconds",
		Help:      "Duration of PIN verification including dummy verifications.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1},
	})
	if err := reg.Register(verify); err != nil {
		existing, err := reuse[prometheus.Histogram](err)
		if err != nil {
			return nil, fmt.Errorf("register verify histogram: %w", err)
		}
		verify = existing
	}

	return &AuthMetrics{Logins: logins, Verify: verify}, nil
}

func reuse[T prometheus.Collector](err error) (T, error) {
	var zero T
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return zero, err
	}
	existing, ok := already.ExistingCollector.(T)
	if !ok {
		return zero, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
	}
	return existing, nil
}

// ObserveLogin counts one login decision.
func (m *AuthMetrics) ObserveLogin(outcome domain.LoginOutcome, reason domain.AuthEventReason) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(string(outcome), string(reason)).Inc()
}

// ObserveVerify records the time spent verifying a PIN.
func (m *AuthMetrics) ObserveVerify(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Verify.Observe(elapsed.Seconds())
}

var _ port.LoginMetrics = (*AuthMetrics)(nil)
