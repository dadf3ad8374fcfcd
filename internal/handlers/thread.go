package handlers

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"reviewhub/internal/middleware"
	"reviewhub/internal/models"
	"reviewhub/internal/services"
	"reviewhub/internal/thread"
	"reviewhub/internal/utils"

	"github.com/gin-gonic/gin"
)

// ThreadHandler serves the server-rendered discussion page.
type ThreadHandler struct {
	posts *services.PostService
}

func NewThreadHandler(posts *services.PostService) *ThreadHandler {
	return &ThreadHandler{posts: posts}
}

type threadRow struct {
	ID            uint
	Author        string
	CreatedAt     time.Time
	Upvotes       int
	Downvotes     int
	Content       string
	Indent        int
	Collapsed     bool
	HiddenReplies int
	ToggleURL     string
}

// Show 渲染帖子详情页。?collapse=all 折叠全部，?collapsed=1,2 折叠指定评论
func (h *ThreadHandler) Show(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		RenderError(c, err)
		return
	}
	detail, err := h.posts.Get(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		RenderError(c, err)
		return
	}

	roots := thread.BuildTree(detail.Comments)
	collapse := thread.NewCollapse(roots, utils.ParseIDList(c.Query("collapsed"))...)
	if c.Query("collapse") == "all" {
		collapse.CollapseAll()
	}
	collapsed := collapse.CollapsedIDs()

	rows := thread.Rows(roots, collapse)
	view := make([]threadRow, len(rows))
	for i, row := range rows {
		p := row.Node.Comment
		view[i] = threadRow{
			ID:            p.ID,
			Author:        authorName(p),
			CreatedAt:     p.CreatedAt,
			Upvotes:       p.Upvotes,
			Downvotes:     p.Downvotes,
			Content:       p.Content,
			Indent:        row.Indent,
			Collapsed:     row.Collapsed,
			HiddenReplies: row.HiddenReplies,
			ToggleURL:     toggleURL(c.Request.URL.Path, collapsed, p.ID, row.Collapsed),
		}
	}

	title := "Discussion"
	if detail.Post.Title != nil && *detail.Post.Title != "" {
		title = *detail.Post.Title
	}
	Render(c, http.StatusOK, "thread.html", gin.H{
		"Title": title,
		"Post":  detail.Post,
		"Rows":  view,
		"Stats": collapse.Stats(),
	})
}

func authorName(p *models.Post) string {
	if p.Author == nil {
		return "[deleted]"
	}
	return p.Author.Username
}

// toggleURL links to the same page with id's collapsed state flipped.
func toggleURL(path string, collapsed []uint, id uint, isCollapsed bool) string {
	next := slices.DeleteFunc(slices.Clone(collapsed), func(v uint) bool { return v == id })
	if !isCollapsed {
		next = append(next, id)
		slices.Sort(next)
	}
	if len(next) == 0 {
		return path + "#comment-" + strconv.FormatUint(uint64(id), 10)
	}
	parts := make([]string, len(next))
	for i, v := range next {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	q := url.Values{"collapsed": {strings.Join(parts, ",")}}
	return path + "?" + q.Encode() + "#comment-" + strconv.FormatUint(uint64(id), 10)
}
