package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/timeclock-auth/internal/core/domain"
	"github.com/arklim/timeclock-auth/internal/transport/http/middleware"
	"github.com/arklim/timeclock-auth/internal/usecase"
)

// UserManager performs administrative user operations.
type UserManager interface {
	CreateUser(ctx context.Context, meta usecase.RequestMeta, input usecase.CreateUserInput) (*domain.User, error)
	UpdateUser(ctx context.Context, meta usecase.RequestMeta, id string, input usecase.UpdateUserInput) error
	DeleteUser(ctx context.Context, meta usecase.RequestMeta, id string) error
}

// UserHandler exposes admin user management.
type UserHandler struct {
	users UserManager
}

// NewUserHandler constructs UserHandler.
func NewUserHandler(users UserManager) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRoutes binds admin user routes. The group must already require an admin session.
func (h *UserHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("", h.create)
	r.PATCH("/:id", h.update)
	r.DELETE("/:id", h.delete)
}

func requestMeta(c *gin.Context) usecase.RequestMeta {
	reqCtx := middleware.GetRequestContext(c)
	return usecase.RequestMeta{IP: reqCtx.IP, UserAgent: reqCtx.UserAgent}
}

func (h *UserHandler) create(c *gin.Context) {
	var body CreateUserRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, codeInvalidFields))
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), requestMeta(c), usecase.CreateUserInput{
		ShortID: body.UserID,
		Pin:     body.Pin,
		Role:    domain.Role(body.Role),
		Name:    body.Name,
	})
	if err != nil {
		RespondWithMappedError(c, err, userErrorCases)
		return
	}

	active := user.Active
	c.JSON(http.StatusOK, CreateUserResponse{User: UserSummary{
		ID:     user.ID,
		UserID: user.ShortID,
		Role:   user.Role,
		Name:   user.Name,
		Active: &active,
	}})
}

func (h *UserHandler) update(c *gin.Context) {
	var body UpdateUserRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, codeInvalidFields))
		return
	}

	input := usecase.UpdateUserInput{
		Name:    body.Name.Ptr(),
		ShortID: body.UserIDShort,
		Pin:     body.Pin,
	}

	if err := h.users.UpdateUser(c.Request.Context(), requestMeta(c), c.Param("id"), input); err != nil {
		RespondWithMappedError(c, err, userErrorCases)
		return
	}

	c.JSON(http.StatusOK, OKResponse{OK: true})
}

func (h *UserHandler) delete(c *gin.Context) {
	if err := h.users.DeleteUser(c.Request.Context(), requestMeta(c), c.Param("id")); err != nil {
		RespondWithMappedError(c, err, userErrorCases)
		return
	}

	c.JSON(http.StatusOK, OKResponse{OK: true})
}
