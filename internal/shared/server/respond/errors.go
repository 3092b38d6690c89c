package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"studybuddy-backend/internal/shared/apperr"
	"studybuddy-backend/internal/shared/telemetry"
)

// ErrorBody defines the standardized error object.
type ErrorBody struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ErrorResponse wraps the error body.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error sends a standardized error response.
func Error(c *gin.Context, status int, code, message string, details interface{}) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	if documentID := c.Param("id"); documentID != "" {
		fields["document_id"] = documentID
	}
	telemetry.Error("http.error", fields)

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// FromError maps the shared error taxonomy to a status and code. Upstream and
// persistence failures show the resource and key, never the wrapped cause.
func FromError(c *gin.Context, err error) {
	var resErr *apperr.ResourceError
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, apperr.ErrNotFound):
		Error(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, apperr.ErrUnauthorized):
		Error(c, http.StatusForbidden, "forbidden", err.Error(), nil)
	case errors.Is(err, apperr.ErrUpstream):
		msg := "upstream service unavailable"
		if errors.As(err, &resErr) {
			msg = resErr.Public()
		}
		logCause(c, err)
		Error(c, http.StatusBadGateway, "upstream_unavailable", msg, nil)
	case errors.Is(err, apperr.ErrPersistence):
		msg := "storage unavailable"
		if errors.As(err, &resErr) {
			msg = resErr.Public()
		}
		logCause(c, err)
		Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	default:
		logCause(c, err)
		Error(c, http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
}

func logCause(c *gin.Context, err error) {
	telemetry.Error("http.error_cause", map[string]any{
		"path":       c.Request.URL.Path,
		"request_id": c.GetString("requestId"),
		"error":      err,
	})
}
