package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/transport/http/middleware"
	"github.com/arklim/timeclock-auth/internal/usecase"
)

// LoginService decides PIN login attempts.
type LoginService interface {
	Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResult, error)
}

// SessionUserResolver resolves the user behind a verified session.
type SessionUserResolver interface {
	CurrentUser(ctx context.Context, claims domain.SessionClaims) (*domain.User, error)
}

// CookieSettings controls the session cookie attributes.
type CookieSettings struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// AuthHandler exposes login, logout and current-session endpoints.
type AuthHandler struct {
	auth   LoginService
	users  SessionUserResolver
	cookie CookieSettings
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth LoginService, users SessionUserResolver, cookie CookieSettings) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "session"
	}
	return &AuthHandler{auth: auth, users: users, cookie: cookie}
}

// RegisterRoutes binds authentication routes, applying loginMiddlewares ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
	r.POST("/login", append(chain, h.login)...)
	r.GET("/me", h.me)
	r.POST("/logout", h.logout)
}

func (h *AuthHandler) login(c *gin.Context) {
	var body LoginRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, codeInvalidCredentials))
		return
	}

	reqCtx := middleware.GetRequestContext(c)
	result, err := h.auth.Login(c.Request.Context(), domain.LoginRequest{
		UserIDShort: body.UserID,
		Pin:         body.Pin,
		ClientIP:    reqCtx.IP,
		UserAgent:   reqCtx.UserAgent,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidLoginInput) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, codeInvalidCredentials))
			return
		}
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, codeServerError))
		return
	}

	switch result.Outcome {
	case domain.LoginOutcomeSuccess:
		h.setSessionCookie(c, result.SessionToken, h.cookie.TTL)
		c.JSON(http.StatusOK, LoginResponse{OK: true, Role: result.Role})
	case domain.LoginOutcomeTooManyAttempts:
		c.JSON(http.StatusTooManyRequests, NewErrorResponse(c, codeTooManyAttempts))
	default:
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, codeInvalidCredentials))
	}
}

func (h *AuthHandler) me(c *gin.Context) {
	claims, ok := middleware.GetSessionClaims(c)
	if !ok {
		c.JSON(http.StatusOK, MeResponse{})
		return
	}

	user, err := h.users.CurrentUser(c.Request.Context(), *claims)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusOK, MeResponse{})
		return
	}
	if user == nil {
		c.JSON(http.StatusOK, MeResponse{})
		return
	}

	summary := newUserSummary(user)
	c.JSON(http.StatusOK, MeResponse{User: &summary})
}

func (h *AuthHandler) logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.JSON(http.StatusOK, OKResponse{OK: true})
}

// setSessionCookie writes the session cookie. A negative maxAge deletes it.
func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge time.Duration) {
	seconds := int(maxAge / time.Second)
	if maxAge < 0 {
		seconds = -1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   seconds,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
