package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"giveaway-poll-backend/internal/common/errors"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Path      string           `json:"path,omitempty"`
	Method    string           `json:"method,omitempty"`
}

// ErrorHandler recovers panics into a 500 response.
func ErrorHandler(log zerolog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error().
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithDetail("panic", fmt.Sprintf("%v", recovered))
		writeError(c, appErr)
	})
}

// HTTPStatus maps an error code to a response status.
func HTTPStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeConflict, errors.ErrCodeInvalidState,
		errors.ErrCodeAlreadyClosed, errors.ErrCodeAlreadyJoined:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as an ErrorResponse. Errors that are not an
// AppError are reported as internal errors.
func RespondError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Wrap(err, errors.ErrCodeInternal, "Internal server error")
	}
	if appErr.Code == errors.ErrCodeInternal {
		_ = c.Error(err)
	}
	writeError(c, appErr)
}

func writeError(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(HTTPStatus(appErr.Code), ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now().UTC(),
		RequestID: GetRequestID(c),
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	})
}
