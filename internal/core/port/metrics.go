package port

import (
	"time"

	"github.com/arklim/timeclock-auth/internal/core/domain"
)

// LoginMetrics records login decisions and verification latency.
type LoginMetrics interface {
	ObserveLogin(outcome domain.LoginOutcome, reason domain.AuthEventReason)
	ObserveVerify(elapsed time.Duration)
}
