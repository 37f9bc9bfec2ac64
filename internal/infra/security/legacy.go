package security

import (
	"crypto/sha256"
	"crypto/subtle"

	"go.uber.org/zap"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
)

// LegacyVerifier verifies PINs against modern Argon2 hashes and against
// plaintext credentials stored before hashing was introduced. A plaintext
// match is flagged so the caller can re-hash it.
type LegacyVerifier struct {
	hasher    *Argon2Hasher
	equalizer *TimingEqualizer
	logger    *zap.Logger
}

// NewLegacyVerifier constructs a verifier. A nil logger disables warnings.
func NewLegacyVerifier(hasher *Argon2Hasher, equalizer *TimingEqualizer, logger *zap.Logger) *LegacyVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LegacyVerifier{hasher: hasher, equalizer: equalizer, logger: logger}
}

// Verify checks pin against stored. An empty stored value burns a dummy
// verification and never matches.
func (v *LegacyVerifier) Verify(pin string, stored string) domain.VerifyResult {
	if stored == "" {
		v.Equalize(pin)
		return domain.VerifyResult{}
	}

	if !IsModernHash(stored) {
		if constantTimeEqual(pin, stored) {
			return domain.VerifyResult{OK: true, Legacy: true}
		}
		return domain.VerifyResult{}
	}

	ok, err := v.hasher.Verify(pin, stored)
	if err != nil {
		v.logger.Warn("stored pin hash could not be decoded", zap.Error(err))
		return domain.VerifyResult{}
	}

	return domain.VerifyResult{OK: ok}
}

// Equalize consumes the cost of one verification without checking anything.
func (v *LegacyVerifier) Equalize(pin string) {
	if v.equalizer != nil {
		v.equalizer.Burn(pin)
	}
}

// constantTimeEqual compares fixed-length digests so neither the length nor
// the position of the first difference leaks through timing.
func constantTimeEqual(a, b string) bool {
	da := sha256.Sum256([]byte(a))
	db := sha256.Sum256([]byte(b))
	return subtle.ConstantTimeCompare(da[:], db[:]) == 1
}

var _ port.CredentialVerifier = (*LegacyVerifier)(nil)
