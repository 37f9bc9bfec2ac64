package handlers

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/transport/http/middleware"
)

// Error codes returned in ErrorResponse.Error.
const (
	codeInvalidCredentials = "invalid_credentials"
	codeTooManyAttempts    = "too_many_attempts"
	codeServerError        = "server_error"
	codeInvalidFields      = "invalid_fields"
	codeInvalidRole        = "invalid_role"
	codeInvalidUserID      = "invalid_user_id"
	codeInvalidPin         = "invalid_pin"
	codeUserExists         = "user_exists"
	codeNotFound           = "not_found"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, code string) ErrorResponse {
	return ErrorResponse{
		Error:   code,
		TraceID: middleware.GetTraceID(c),
	}
}

// OKResponse acknowledges a request without further content.
type OKResponse struct {
	OK bool `json:"ok"`
}

// LoginRequest is the body of the PIN login endpoint. Fields are optional at
// the binding level so that shape errors map to a uniform response.
type LoginRequest struct {
	UserID string `json:"userId"`
	Pin    string `json:"pin"`
}

// LoginResponse is returned for a successful login alongside the session cookie.
type LoginResponse struct {
	OK   bool        `json:"ok"`
	Role domain.Role `json:"role"`
}

// UserSummary is the public view of a user.
type UserSummary struct {
	ID     string      `json:"id"`
	UserID string      `json:"userId,omitempty"`
	Role   domain.Role `json:"role"`
	Name   *string     `json:"name"`
	Active *bool       `json:"active,omitempty"`
}

func newUserSummary(user *domain.User) UserSummary {
	return UserSummary{
		ID:     user.ID,
		UserID: user.ShortID,
		Role:   user.Role,
		Name:   user.Name,
	}
}

// MeResponse describes the current session user; User is null when there is none.
type MeResponse struct {
	User *UserSummary `json:"user"`
}

// CreateUserRequest is the body of the admin create endpoint.
type CreateUserRequest struct {
	UserID string `json:"userId"`
	Pin    string `json:"pin"`
	Role   string `json:"role"`
	Name   string `json:"name"`
}

// CreateUserResponse wraps the created user.
type CreateUserResponse struct {
	User UserSummary `json:"user"`
}

// UpdateUserRequest is the body of the admin edit endpoint. Absent fields are
// left unchanged; a null or blank name clears it.
type UpdateUserRequest struct {
	Name        OptionalString `json:"name"`
	UserIDShort *string        `json:"userIdShort"`
	Pin         *string        `json:"pin"`
}

// OptionalString distinguishes an absent JSON field from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// Ptr returns nil when absent, an empty string for null, or the value.
func (o OptionalString) Ptr() *string {
	if !o.Set {
		return nil
	}
	if o.Value == nil {
		empty := ""
		return &empty
	}
	return o.Value
}

// HealthResponse reports liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse reports the state of each dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
