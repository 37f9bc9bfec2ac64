package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
)

// DefaultSessionTTL is how long an issued session stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

var (
	// ErrMissingSessionSecret indicates the signer was built without a key.
	ErrMissingSessionSecret = errors.New("session: missing signing secret")
	// ErrInvalidSession indicates a token is malformed, tampered with, or carries bad claims.
	ErrInvalidSession = errors.New("session: invalid token")
	// ErrSessionExpired indicates a well-formed token past its expiry.
	ErrSessionExpired = errors.New("session: token expired")
)

type sessionTokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionSigner issues HMAC-SHA256 signed, time-limited session tokens.
type SessionSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionSigner constructs a signer. A non-positive ttl selects DefaultSessionTTL.
func NewSessionSigner(secret, issuer string, ttl time.Duration) (*SessionSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSessionSecret
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionSigner{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// WithClock overrides the signer clock, used by tests.
func (s *SessionSigner) WithClock(now func() time.Time) *SessionSigner {
	if now != nil {
		s.now = now
	}
	return s
}

// TTL returns the lifetime of issued tokens.
func (s *SessionSigner) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token carrying userID and role.
func (s *SessionSigner) Issue(userID string, role domain.Role) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, fmt.Errorf("session: user id is required")
	}
	if !role.Valid() {
		return "", time.Time{}, fmt.Errorf("session: unsupported role %q", role)
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)

	claims := sessionTokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign token: %w", err)
	}

	return signed, expiresAt, nil
}

// Verify validates signature, expiry and claims of token.
func (s *SessionSigner) Verify(token string) (*domain.SessionClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidSession
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &sessionTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidSession
	}
	if parsed == nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}

	role := domain.Role(claims.Role)
	if !role.Valid() || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidSession
	}

	return &domain.SessionClaims{
		UserID:    claims.Subject,
		Role:      role,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

var _ port.SessionIssuer = (*SessionSigner)(nil)
