package domain

import "time"

const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutWindow     = 15 * time.Minute
	DefaultLockDuration      = 15 * time.Minute
)

// FailureState captures the per-user counters used for brute-force lockout.
type FailureState struct {
	FailedAttempts int
	LastFailedAt   *time.Time
	LockedUntil    *time.Time
}

// LockoutPolicy evaluates failed login attempts over a sliding window.
// All methods are pure functions of their inputs.
type LockoutPolicy struct {
	MaxFailedAttempts int
	Window            time.Duration
	LockDuration      time.Duration
}

// DefaultLockoutPolicy returns the policy with five attempts per fifteen minutes
// and a fifteen minute lock.
func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{
		MaxFailedAttempts: DefaultMaxFailedAttempts,
		Window:            DefaultLockoutWindow,
		LockDuration:      DefaultLockDuration,
	}
}

// NewLockoutPolicy builds a policy, falling back to defaults for non-positive values.
func NewLockoutPolicy(maxAttempts int, window, lockDuration time.Duration) LockoutPolicy {
	p := DefaultLockoutPolicy()
	if maxAttempts > 0 {
		p.MaxFailedAttempts = maxAttempts
	}
	if window > 0 {
		p.Window = window
	}
	if lockDuration > 0 {
		p.LockDuration = lockDuration
	}
	return p
}

// IsLocked reports whether lockedUntil is set and strictly after now.
func (p LockoutPolicy) IsLocked(lockedUntil *time.Time, now time.Time) bool {
	if lockedUntil == nil || lockedUntil.IsZero() {
		return false
	}
	return lockedUntil.After(now)
}

// RecordFailure returns the state after one more failed attempt at now.
// Failures older than the window do not accumulate with the new one.
func (p LockoutPolicy) RecordFailure(state FailureState, now time.Time) FailureState {
	attempts := state.FailedAttempts
	if attempts < 0 {
		attempts = 0
	}

	if state.LastFailedAt == nil || state.LastFailedAt.IsZero() || now.Sub(*state.LastFailedAt) > p.Window {
		attempts = 0
	}

	attempts++
	failedAt := now

	next := FailureState{
		FailedAttempts: attempts,
		LastFailedAt:   &failedAt,
	}

	if attempts >= p.MaxFailedAttempts {
		until := now.Add(p.LockDuration)
		next.LockedUntil = &until
	}

	return next
}

// RecordSuccess returns a fully reset state.
func (p LockoutPolicy) RecordSuccess() FailureState {
	return FailureState{}
}

// Remaining returns how many more failures are tolerated before a lock.
func (p LockoutPolicy) Remaining(state FailureState, now time.Time) int {
	if state.LastFailedAt == nil || now.Sub(*state.LastFailedAt) > p.Window {
		return p.MaxFailedAttempts
	}
	remaining := p.MaxFailedAttempts - state.FailedAttempts
	if remaining < 0 {
		return 0
	}
	return remaining
}
