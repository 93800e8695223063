package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mikejsmtih1985/mbl2pc/internal/apperrors"
)

type errorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrStorage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	detail := err.Error()
	switch status {
	case http.StatusUnauthorized:
		detail = "Not authenticated"
	case http.StatusInternalServerError:
		detail = "Internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, errorResponse{Detail: detail, Code: apperrors.Code(err)})
}
