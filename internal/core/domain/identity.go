package domain

import (
	"regexp"
	"strings"
	"time"
)

// Role enumerates the roles a time-clock user can hold.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Valid reports whether the role is one of the supported values.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

const (
	// ShortIDLength is the fixed length of the human-facing login identifier.
	ShortIDLength = 2
	// MinPinLength is the minimum accepted PIN length.
	MinPinLength = 4
)

var shortIDPattern = regexp.MustCompile(`^\d{2}$`)

// IsValidShortID reports whether value has the short id shape (two ASCII digits).
func IsValidShortID(value string) bool {
	return len(value) == ShortIDLength && shortIDPattern.MatchString(value)
}

// IsValidPin reports whether pin satisfies the minimum length requirement.
func IsValidPin(pin string) bool {
	return len(pin) >= MinPinLength
}

// NormalizeShortID trims surrounding whitespace from a submitted short id.
func NormalizeShortID(value string) string {
	return strings.TrimSpace(value)
}

// User mirrors the persisted representation in the users table.
type User struct {
	ID      string
	ShortID string
	Name    *string
	// PinHash holds either a modern Argon2 hash or a legacy plaintext PIN.
	PinHash string
	Role    Role
	Active  bool

	FailedAttempts int
	LastFailedAt   *time.Time
	LockedUntil    *time.Time
}

// FailureState returns the lockout counters carried by the user record.
func (u User) FailureState() FailureState {
	return FailureState{
		FailedAttempts: u.FailedAttempts,
		LastFailedAt:   u.LastFailedAt,
		LockedUntil:    u.LockedUntil,
	}
}

// ApplyFailureState copies state onto the user record.
func (u *User) ApplyFailureState(state FailureState) {
	u.FailedAttempts = state.FailedAttempts
	u.LastFailedAt = state.LastFailedAt
	u.LockedUntil = state.LockedUntil
}

// UserUpdate carries the optional fields of an admin edit. Nil fields are left unchanged.
type UserUpdate struct {
	Name      *string
	ClearName bool
	ShortID   *string
	PinHash   *string
	// ResetFailures clears lockout counters, used with an explicit PIN reset.
	ResetFailures bool
}

// Empty reports whether the update changes nothing.
func (u UserUpdate) Empty() bool {
	return u.Name == nil && !u.ClearName && u.ShortID == nil && u.PinHash == nil && !u.ResetFailures
}

// VerifyResult is the outcome of checking a PIN against a stored credential.
// Legacy is only set when the PIN matched a plaintext credential that should
// be re-hashed.
type VerifyResult struct {
	OK     bool
	Legacy bool
}
