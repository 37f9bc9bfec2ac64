package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arklim/timeclock-auth/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and error code.
type ErrorCase struct {
	Err    error
	Status int
	Code   string
}

// RespondWithMappedError resolves err against known cases or falls back to a
// 500 server_error. Unmapped errors are attached to the gin context so the
// access log records them.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase) {
	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Code))
			return
		}
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, codeServerError))
}

var userErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidFields, Status: http.StatusBadRequest, Code: codeInvalidFields},
	{Err: usecase.ErrInvalidRole, Status: http.StatusBadRequest, Code: codeInvalidRole},
	{Err: usecase.ErrInvalidShortID, Status: http.StatusBadRequest, Code: codeInvalidUserID},
	{Err: usecase.ErrInvalidPin, Status: http.StatusBadRequest, Code: codeInvalidPin},
	{Err: usecase.ErrUserExists, Status: http.StatusConflict, Code: codeUserExists},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Code: codeNotFound},
}
