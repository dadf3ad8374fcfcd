package handlers

import (
	"net/http"

	"reviewhub/internal/middleware"
	"reviewhub/internal/response"
	"reviewhub/internal/services"
	"reviewhub/internal/utils"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	moderation *services.ModerationService
	tags       *services.TagService
	audit      *services.AuditService
}

func NewAdminHandler(moderation *services.ModerationService, tags *services.TagService, audit *services.AuditService) *AdminHandler {
	return &AdminHandler{moderation: moderation, tags: tags, audit: audit}
}

type moderateRequest struct {
	Action string `json:"action"`
}

// Moderate 置顶/锁定/隐藏。权限检查在 service 中完成
func (h *AdminHandler) Moderate(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req moderateRequest
	if err := bindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	flags, err := h.moderation.Moderate(c.Request.Context(), middleware.CurrentUser(c), id, req.Action)
	if err != nil {
		response.Fail(c, err)
		return
	}
	payload := gin.H{
		"success":  true,
		"postId":   id,
		"isPinned": flags.Pinned,
		"isLocked": flags.Locked,
		"isHidden": flags.Hidden,
	}
	if rl := rateLimitOf(c); rl != nil {
		payload["rateLimit"] = rl
	}
	response.OK(c, http.StatusOK, payload)
}

type tagRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *AdminHandler) CreateTag(c *gin.Context) {
	var req tagRequest
	if err := bindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}
	tag, err := h.tags.Create(c.Request.Context(), middleware.CurrentUser(c), req.Name, req.Description)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, tag)
}

func (h *AdminHandler) DeleteTag(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	if err := h.tags.Delete(c.Request.Context(), middleware.CurrentUser(c), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"success": true})
}

// Audit 审计日志，最新的在前
func (h *AdminHandler) Audit(c *gin.Context) {
	page, err := h.audit.List(c.Request.Context(), utils.StringToInt(c.Query("page")), utils.StringToInt(c.Query("limit")))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, page)
}
