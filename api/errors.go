package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/flightdesk/internal/domain"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// statusFor maps the domain error taxonomy to an HTTP status.
func statusFor(err error) int {
	var (
		ve *domain.ValidationError
		re *domain.RejectedError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConcurrencyConflict), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.As(err, &re):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrIntegrationDisabled), domain.IsTransport(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	resp := errorResponse{Error: err.Error()}
	var (
		ve *domain.ValidationError
		re *domain.RejectedError
	)
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}
	if errors.As(err, &re) {
		resp.Code = re.Code
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		resp.Error = "internal error"
	}
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
}
