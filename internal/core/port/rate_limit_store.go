package port

import (
	"context"
	"time"
)

// ThrottleDecision reports the outcome of a sliding-window request check.
type ThrottleDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RequestThrottle counts requests per key in a sliding window. Allowed requests
// are recorded; rejected ones are not.
type RequestThrottle interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (ThrottleDecision, error)
}
