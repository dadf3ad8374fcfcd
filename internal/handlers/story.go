package handlers

import (
	"net/http"

	"reviewhub/internal/middleware"
	"reviewhub/internal/models"
	"reviewhub/internal/response"
	"reviewhub/internal/services"
	"reviewhub/internal/utils"

	"github.com/gin-gonic/gin"
)

type StoryHandler struct {
	posts *services.PostService
	feed  *services.FeedService
	tags  *services.TagService
}

func NewStoryHandler(posts *services.PostService, feed *services.FeedService, tags *services.TagService) *StoryHandler {
	return &StoryHandler{posts: posts, feed: feed, tags: tags}
}

// List 首页帖子流：?page=&limit=&category=&sort=recent|popular|trending
func (h *StoryHandler) List(c *gin.Context) {
	page, err := h.feed.List(c.Request.Context(), services.FeedQuery{
		Page:     utils.StringToInt(c.Query("page")),
		Limit:    utils.StringToInt(c.Query("limit")),
		Category: models.Category(c.Query("category")),
		Sort:     c.Query("sort"),
		ViewerID: middleware.CurrentUserID(c),
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, page)
}

// Get returns a post and its whole reply tree as a flat list.
func (h *StoryHandler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	detail, err := h.posts.Get(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, detail)
}

type createPostRequest struct {
	Title      *string         `json:"title"`
	Content    string          `json:"content"`
	Format     string          `json:"format"`
	Category   models.Category `json:"category"`
	ParentID   *uint           `json:"parentId"`
	Tags       []string        `json:"tags"`
	FlairText  *string         `json:"flairText"`
	FlairColor *string         `json:"flairColor"`
}

type createdPost struct {
	*models.Post
	RateLimit *rateLimitInfo `json:"rateLimit,omitempty"`
}

// Create 发帖或回复，作者自动点赞
func (h *StoryHandler) Create(c *gin.Context) {
	var req createPostRequest
	if err := bindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}

	post, err := h.posts.Create(c.Request.Context(), middleware.CurrentUser(c), services.CreatePostInput{
		Title:      req.Title,
		Content:    req.Content,
		Format:     req.Format,
		Category:   req.Category,
		ParentID:   req.ParentID,
		Tags:       req.Tags,
		FlairText:  req.FlairText,
		FlairColor: req.FlairColor,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusCreated, createdPost{Post: post, RateLimit: rateLimitOf(c)})
}

func (h *StoryHandler) Sidebar(c *gin.Context) {
	sidebar, err := h.feed.Sidebar(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, sidebar)
}

func (h *StoryHandler) Tags(c *gin.Context) {
	tags, err := h.tags.List(c.Request.Context())
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, gin.H{"tags": tags})
}
