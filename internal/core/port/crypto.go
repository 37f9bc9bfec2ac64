package port

import (
	"time"

	"github.com/arklim/timeclock-auth/internal/core/domain"
)

// PinHasher hashes and verifies PINs with a memory-hard algorithm.
type PinHasher interface {
	Hash(pin string) (string, error)
	Verify(pin string, encoded string) (bool, error)
	IsModernHash(value string) bool
}

// CredentialVerifier checks a PIN against a stored credential that may be a
// modern hash, legacy plaintext, or absent.
type CredentialVerifier interface {
	Verify(pin string, stored string) domain.VerifyResult
	// Equalize burns the cost of one verification without checking anything.
	Equalize(pin string)
}

// SessionIssuer signs and verifies bearer session tokens.
type SessionIssuer interface {
	Issue(userID string, role domain.Role) (string, time.Time, error)
	Verify(token string) (*domain.SessionClaims, error)
}
