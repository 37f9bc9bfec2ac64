package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/core/port"
)

// ErrorResponse matches the handlers.ErrorResponse structure
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, code string) ErrorResponse {
	return ErrorResponse{
		Error:   code,
		TraceID: GetTraceID(c),
	}
}

// SessionFromCookie verifies the session cookie when present and stores its
// claims. Requests without a valid session continue unauthenticated.
func SessionFromCookie(sessions port.SessionIssuer, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(cookieName)
		if err == nil && token != "" {
			if claims, err := sessions.Verify(token); err == nil {
				SetSessionClaims(c, claims)
			}
		}
		c.Next()
	}
}

// RequireRole rejects requests without a verified session of the given role.
// It must run after SessionFromCookie.
func RequireRole(role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetSessionClaims(c)
		if !ok || claims.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, newErrorResponse(c, "forbidden"))
			return
		}
		c.Next()
	}
}

// RequireAdmin is RequireRole(domain.RoleAdmin).
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(domain.RoleAdmin)
}
