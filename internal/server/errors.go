package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fieldops/internal/apperror"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorPayload struct {
	Type    string            `json:"type"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = apperror.New(apperror.KindUnauthorized, "unauthorized", "unauthorized")
	ErrRateLimited    = apperror.New(apperror.KindRateLimited, "rate_limited", "too many requests")
	ErrInvalidRequest = apperror.Validation("invalid_request", "request", "invalid request")
	ErrRouteNotFound  = apperror.NotFound("route_not_found", "not found")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

func newValidationError(field, code, message string) error {
	return apperror.Validation(code, field, message)
}

func mapError(err error) (int, errorPayload) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return http.StatusNotFound, errorPayload{Type: string(apperror.KindNotFound), Code: "not_found", Message: "not found"}
	}

	var appErr *apperror.Error
	if !errors.As(err, &appErr) || appErr == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    string(apperror.KindInternal),
			Message: "internal server error",
		}
	}

	payload := errorPayload{
		Type:    string(appErr.Kind),
		Code:    appErr.Code,
		Message: appErr.Message,
	}
	switch appErr.Kind {
	case apperror.KindValidation:
		payload.Message = "validation error"
		payload.Errors = []ValidationError{{
			Field:   appErr.Field,
			Code:    appErr.Code,
			Message: appErr.Message,
		}}
		return http.StatusBadRequest, payload
	case apperror.KindUnauthorized:
		return http.StatusUnauthorized, payload
	case apperror.KindAuthorization:
		return http.StatusForbidden, payload
	case apperror.KindNotFound:
		return http.StatusNotFound, payload
	case apperror.KindConflict:
		return http.StatusConflict, payload
	case apperror.KindRateLimited:
		return http.StatusTooManyRequests, payload
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    string(apperror.KindInternal),
			Code:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger's error_type and error_code.
func classifyErrorForLog(err error) (string, string) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return string(apperror.KindNotFound), "not_found"
	}
	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr != nil {
		return string(appErr.Kind), appErr.Code
	}
	return string(apperror.KindInternal), "internal_error"
}
