package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/arklim/timeclock-auth/internal/core/domain"
)

const (
	// TraceIDHeader is the HTTP header name for trace ID
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the context key for trace ID
	TraceIDKey = "trace_id"
	// UserIDKey is the context key for the authenticated user ID
	UserIDKey = "user_id"

	sessionClaimsKey  = "session_claims"
	requestContextKey = "request_context"
)

// RequestContext holds request-scoped information
type RequestContext struct {
	TraceID   string
	UserID    string
	IP        string
	UserAgent string
}

// EnrichContext adds trace ID and request context to each request
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext retrieves the full request context. Without EnrichContext
// it falls back to the raw request values.
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// SetSessionClaims stores verified session claims on the request.
func SetSessionClaims(c *gin.Context, claims *domain.SessionClaims) {
	c.Set(sessionClaimsKey, claims)
	c.Set(UserIDKey, claims.UserID)
	if reqCtx, exists := c.Get(requestContextKey); exists {
		if rc, ok := reqCtx.(*RequestContext); ok {
			rc.UserID = claims.UserID
		}
	}
}

// GetSessionClaims returns the claims stored by the session middleware.
func GetSessionClaims(c *gin.Context) (*domain.SessionClaims, bool) {
	value, exists := c.Get(sessionClaimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*domain.SessionClaims)
	return claims, ok && claims != nil
}
