package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"reviewhub/internal/middleware"
	"reviewhub/internal/utils"

	"github.com/gin-gonic/gin"
)

// Render helper to inject common variables like 'current user'
func Render(c *gin.Context, code int, name string, obj gin.H) {
	if obj == nil {
		obj = gin.H{}
	}
	if user := middleware.CurrentUser(c); user != nil {
		obj["CurrentUser"] = user
	}
	obj["CurrentPath"] = c.Request.URL.Path
	c.HTML(code, name, obj)
}

// RenderError renders the HTML error page for err, hiding internal detail like response.Fail.
func RenderError(c *gin.Context, err error) {
	appErr, ok := utils.AsAppError(err)
	if !ok {
		appErr = utils.NewInternalError("unhandled error", err)
	}
	status := appErr.HTTPStatus()
	message := appErr.Message
	if status >= http.StatusInternalServerError {
		message = "something went wrong, please try again"
	}
	Render(c, status, "error.html", gin.H{"Title": http.StatusText(status), "Status": status, "Error": message})
	c.Abort()
}

func parseID(c *gin.Context) (uint, error) {
	id := utils.StringToUint(c.Param("id"))
	if id == 0 {
		return 0, utils.NewValidationError("invalid id")
	}
	return id, nil
}

// bindJSON decodes the body. An empty body decodes as {}.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return utils.NewValidationError("invalid request body")
	}
	return nil
}

type rateLimitInfo struct {
	Remaining int       `json:"remaining"`
	ResetTime time.Time `json:"resetTime"`
}

// rateLimitOf returns what the rate limit middleware recorded, nil on unlimited routes.
func rateLimitOf(c *gin.Context) *rateLimitInfo {
	res, ok := middleware.RateLimitResult(c)
	if !ok {
		return nil
	}
	return &rateLimitInfo{Remaining: res.Remaining, ResetTime: res.ResetTime}
}
