package handlers

import (
	"net/http"

	"reviewhub/internal/middleware"
	"reviewhub/internal/response"
	"reviewhub/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	*services.AuthResult
	RateLimit *rateLimitInfo `json:"rateLimit,omitempty"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := bindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}
	res, err := h.auth.Register(c.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.startSession(c, res)
	response.OK(c, http.StatusCreated, authResponse{AuthResult: res, RateLimit: rateLimitOf(c)})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := bindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Fail(c, err)
		return
	}
	h.startSession(c, res)
	response.OK(c, http.StatusOK, authResponse{AuthResult: res, RateLimit: rateLimitOf(c)})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	response.OK(c, http.StatusOK, gin.H{"success": true})
}

// 浏览器端的服务端渲染页面靠 cookie 识别用户，API 客户端用 token
func (h *AuthHandler) startSession(c *gin.Context, res *services.AuthResult) {
	session := sessions.Default(c)
	session.Set(middleware.SessionUserID, res.User.ID)
	_ = session.Save()
}
