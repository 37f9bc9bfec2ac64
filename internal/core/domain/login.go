package domain

import "time"

// LoginRequest is the validated input of a login attempt.
type LoginRequest struct {
	UserIDShort string
	Pin         string
	ClientIP    string
	UserAgent   string
}

// Valid reports whether the request has the expected short id and PIN shape.
func (r LoginRequest) Valid() bool {
	return IsValidShortID(r.UserIDShort) && IsValidPin(r.Pin)
}

// LoginOutcome is the client-visible decision for a login attempt.
type LoginOutcome string

const (
	LoginOutcomeSuccess            LoginOutcome = "success"
	LoginOutcomeInvalidCredentials LoginOutcome = "invalid_credentials"
	LoginOutcomeTooManyAttempts    LoginOutcome = "too_many_attempts"
)

// LoginResult describes the result of a login attempt. Role, SessionToken and
// ExpiresAt are only populated on success. Reason is internal and must not be
// surfaced to clients.
type LoginResult struct {
	Outcome      LoginOutcome
	Role         Role
	UserID       string
	SessionToken string
	ExpiresAt    time.Time
	Reason       AuthEventReason
}

// OK reports whether the login succeeded.
func (r LoginResult) OK() bool {
	return r.Outcome == LoginOutcomeSuccess
}

// SessionClaims are the verified contents of a session token.
type SessionClaims struct {
	UserID    string
	Role      Role
	ExpiresAt time.Time
}
