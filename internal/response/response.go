// Package response writes JSON bodies and is the one place errors become HTTP responses.
package response

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"reviewhub/internal/utils"

	"github.com/gin-gonic/gin"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

const genericMessage = "something went wrong, please try again"

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// OK writes a JSON payload.
func OK(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// Fail maps err to a status and the {"error":{"message","code"}} body and aborts.
// Anything that is not an *utils.AppError, and every internal error, is reported
// with a generic message; the detail only goes to the log.
func Fail(c *gin.Context, err error) {
	appErr, ok := utils.AsAppError(err)
	if !ok {
		appErr = utils.NewInternalError("unhandled error", err)
	}

	status := appErr.HTTPStatus()
	body := errorBody{Message: appErr.Message, Code: appErr.Code}

	logger := slog.With(
		"request_id", c.GetString(RequestIDKey),
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", status,
		"code", appErr.Code,
	)

	switch {
	case status >= http.StatusInternalServerError:
		body = errorBody{Message: genericMessage, Code: utils.ErrInternal}
		logger.ErrorContext(c.Request.Context(), "request failed", "error", err)
	case appErr.Kind == utils.KindRateLimited:
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(appErr.RetryAt)))
		logger.InfoContext(c.Request.Context(), "request rate limited")
	default:
		logger.DebugContext(c.Request.Context(), "request rejected", "error", err)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": body})
}

func retryAfterSeconds(at time.Time) int {
	if at.IsZero() {
		return 1
	}
	secs := int(math.Ceil(time.Until(at).Seconds()))
	return max(secs, 1)
}
