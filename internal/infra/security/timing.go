package security

import (
	"fmt"
	"time"
)

// TimingEqualizer makes rejection paths that skip real verification cost about
// as much as a real Argon2 check, and can pad every decision to a floor.
type TimingEqualizer struct {
	hasher      *Argon2Hasher
	dummyHash   string
	minDuration time.Duration
	now         func() time.Time
	sleep       func(time.Duration)
}

// NewTimingEqualizer builds an equalizer whose dummy hash uses the hasher's
// current parameters. The dummy secret is random and discarded, so the dummy
// hash never matches a submitted PIN.
func NewTimingEqualizer(hasher *Argon2Hasher, minDuration time.Duration) (*TimingEqualizer, error) {
	if hasher == nil {
		return nil, fmt.Errorf("timing equalizer: hasher is required")
	}

	secret, err := GenerateSecureToken(32)
	if err != nil {
		return nil, fmt.Errorf("timing equalizer: %w", err)
	}

	dummy, err := hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("timing equalizer: build dummy hash: %w", err)
	}

	if minDuration < 0 {
		minDuration = 0
	}

	return &TimingEqualizer{
		hasher:      hasher,
		dummyHash:   dummy,
		minDuration: minDuration,
		now:         time.Now,
		sleep:       time.Sleep,
	}, nil
}

// WithClock overrides the clock and sleeper, used by tests.
func (e *TimingEqualizer) WithClock(now func() time.Time, sleep func(time.Duration)) *TimingEqualizer {
	if now != nil {
		e.now = now
	}
	if sleep != nil {
		e.sleep = sleep
	}
	return e
}

// Burn performs one Argon2 verification against the dummy hash and discards the result.
func (e *TimingEqualizer) Burn(pin string) {
	_, _ = e.hasher.Verify(pin, e.dummyHash)
}

// Pad blocks until at least the configured floor has elapsed since started.
func (e *TimingEqualizer) Pad(started time.Time) {
	if e.minDuration <= 0 {
		return
	}
	if remaining := e.minDuration - e.now().Sub(started); remaining > 0 {
		e.sleep(remaining)
	}
}
