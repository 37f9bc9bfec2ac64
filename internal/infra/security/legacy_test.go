package security

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/timeclock-auth/internal/core/domain"
)

func newTestVerifier(t *testing.T) (*LegacyVerifier, *Argon2Hasher) {
	t.Helper()

	hasher := newTestHasher(t)
	equalizer, err := NewTimingEqualizer(hasher, 0)
	if err != nil {
		t.Fatalf("NewTimingEqualizer returned error: %v", err)
	}
	return NewLegacyVerifier(hasher, equalizer, zaptest.NewLogger(t)), hasher
}

func TestLegacyVerifierModernHash(t *testing.T) {
	verifier, hasher := newTestVerifier(t)

	encoded, err := hasher.Hash("1234")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if got := verifier.Verify("1234", encoded); got != (domain.VerifyResult{OK: true}) {
		t.Fatalf("expected modern match, got %+v", got)
	}
	if got := verifier.Verify("9999", encoded); got != (domain.VerifyResult{}) {
		t.Fatalf("expected modern mismatch, got %+v", got)
	}
}

func TestLegacyVerifierMissingCredential(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	if got := verifier.Verify("1234", ""); got != (domain.VerifyResult{}) {
		t.Fatalf("expected failure for missing credential, got %+v", got)
	}
}

func TestLegacyVerifierPlaintext(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	if got := verifier.Verify("1234", "1234"); got != (domain.VerifyResult{OK: true, Legacy: true}) {
		t.Fatalf("expected legacy match, got %+v", got)
	}
	if got := verifier.Verify("1234", "9999"); got != (domain.VerifyResult{}) {
		t.Fatalf("expected legacy mismatch, got %+v", got)
	}
	if got := verifier.Verify("12345", "1234"); got != (domain.VerifyResult{}) {
		t.Fatalf("expected length mismatch to fail, got %+v", got)
	}
}

func TestLegacyVerifierMalformedModernHash(t *testing.T) {
	verifier, _ := newTestVerifier(t)

	if got := verifier.Verify("1234", "$argon2id$garbage"); got != (domain.VerifyResult{}) {
		t.Fatalf("expected malformed hash to fail closed, got %+v", got)
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !constantTimeEqual("0420", "0420") {
		t.Fatal("expected equal strings to match")
	}
	if constantTimeEqual("0420", "0421") || constantTimeEqual("", "0") {
		t.Fatal("expected different strings not to match")
	}
}

func TestTimingEqualizerPad(t *testing.T) {
	hasher := newTestHasher(t)
	equalizer, err := NewTimingEqualizer(hasher, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("NewTimingEqualizer returned error: %v", err)
	}

	started := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	now := started.Add(50 * time.Millisecond)
	var slept time.Duration
	equalizer.WithClock(func() time.Time { return now }, func(d time.Duration) { slept += d })

	equalizer.Pad(started)
	if slept != 150*time.Millisecond {
		t.Fatalf("expected to sleep 150ms, slept %v", slept)
	}

	slept = 0
	now = started.Add(time.Second)
	equalizer.Pad(started)
	if slept != 0 {
		t.Fatalf("expected no sleep past the floor, slept %v", slept)
	}
}

func TestTimingEqualizerDisabledPad(t *testing.T) {
	hasher := newTestHasher(t)
	equalizer, err := NewTimingEqualizer(hasher, 0)
	if err != nil {
		t.Fatalf("NewTimingEqualizer returned error: %v", err)
	}

	equalizer.WithClock(nil, func(time.Duration) { t.Fatal("unexpected sleep") })
	equalizer.Pad(time.Now().Add(-time.Hour))
	equalizer.Pad(time.Now())
}

func TestTimingEqualizerDummyHashNeverMatches(t *testing.T) {
	hasher := newTestHasher(t)
	equalizer, err := NewTimingEqualizer(hasher, 0)
	if err != nil {
		t.Fatalf("NewTimingEqualizer returned error: %v", err)
	}

	if !IsModernHash(equalizer.dummyHash) {
		t.Fatalf("expected dummy hash to be a modern hash, got %q", equalizer.dummyHash)
	}
	if ok, _ := hasher.Verify("1234", equalizer.dummyHash); ok {
		t.Fatal("dummy hash must not match a pin")
	}
}

func TestNewTimingEqualizerRequiresHasher(t *testing.T) {
	if _, err := NewTimingEqualizer(nil, 0); err == nil {
		t.Fatal("expected error without hasher")
	}
}
