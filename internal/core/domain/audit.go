package domain

import "time"

// AuthEventType names the kind of audited authentication action.
type AuthEventType string

const (
	AuthEventLogin           AuthEventType = "login"
	AuthEventAdminCreateUser AuthEventType = "admin_create_user"
	AuthEventAdminUpdateUser AuthEventType = "admin_update_user"
	AuthEventAdminDeleteUser AuthEventType = "admin_delete_user"
)

// AuthEventReason is the machine-readable cause recorded with an audit event.
type AuthEventReason string

const (
	ReasonInvalidCredentials AuthEventReason = "invalid_credentials"
	ReasonInactiveUser       AuthEventReason = "inactive_user"
	ReasonUserLocked         AuthEventReason = "user_locked"
	ReasonIPLocked           AuthEventReason = "ip_locked"
)

// AuthEvent is an immutable audit record. It is appended once per attempt and
// doubles as the data source for per-IP throttling.
type AuthEvent struct {
	ID          string
	OccurredAt  time.Time
	UserIDShort *string
	UserID      *string
	IP          string
	UserAgent   string
	EventType   AuthEventType
	Success     bool
	Reason      *AuthEventReason
}

// WithReason returns a copy of the event carrying reason.
func (e AuthEvent) WithReason(reason AuthEventReason) AuthEvent {
	r := reason
	e.Reason = &r
	return e
}

// ReasonString returns the reason or an empty string.
func (e AuthEvent) ReasonString() string {
	if e.Reason == nil {
		return ""
	}
	return string(*e.Reason)
}

// StringPtr returns nil for empty strings and a pointer otherwise.
func StringPtr(value string) *string {
	if value == "" {
		return nil
	}
	v := value
	return &v
}
