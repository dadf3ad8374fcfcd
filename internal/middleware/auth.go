package middleware

import (
	"strings"

	"reviewhub/internal/models"
	"reviewhub/internal/response"
	"reviewhub/internal/services"
	"reviewhub/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CheckUserKey  = "user"
	SessionUserID = "user_id"
)

// LoadUser resolves the caller from a bearer token or the session cookie and puts
// the *models.User on the context. Anonymous requests pass through untouched; a
// bearer token that fails verification is rejected.
func LoadUser(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" {
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				response.Fail(c, utils.NewUnauthorizedError("invalid authorization format"))
				return
			}
			claims, err := auth.ValidateToken(token)
			if err != nil {
				response.Fail(c, utils.NewUnauthorizedError("invalid or expired token"))
				return
			}
			user, err := auth.UserByID(c.Request.Context(), claims.UserID)
			if err != nil {
				response.Fail(c, err)
				return
			}
			c.Set(CheckUserKey, user)
			c.Next()
			return
		}

		session := sessions.Default(c)
		if id, ok := session.Get(SessionUserID).(uint); ok && id > 0 {
			user, err := auth.UserByID(c.Request.Context(), id)
			if err == nil {
				c.Set(CheckUserKey, user)
			} else if utils.IsKind(err, utils.KindUnauthorized) {
				// 账号已不存在，清掉会话
				session.Delete(SessionUserID)
				_ = session.Save()
			} else {
				response.Fail(c, err)
				return
			}
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(CheckUserKey); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	return nil
}

// CurrentUserID returns 0 for anonymous requests.
func CurrentUserID(c *gin.Context) uint {
	if u := CurrentUser(c); u != nil {
		return u.ID
	}
	return 0
}

// AuthRequired ensures a user is logged in
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			response.Fail(c, utils.NewUnauthorizedError(""))
			return
		}
		c.Next()
	}
}

// AdminRequired gates the back-office routes.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			response.Fail(c, utils.NewUnauthorizedError(""))
			return
		}
		if !models.IsAdmin(user.Role) {
			response.Fail(c, utils.NewForbiddenError("admin role required"))
			return
		}
		c.Next()
	}
}
