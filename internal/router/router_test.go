package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reviewhub/internal/config"
	"reviewhub/internal/db/dbtest"
	"reviewhub/internal/ratelimit"
	"reviewhub/internal/services"
	"reviewhub/internal/utils"
	"reviewhub/web"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type app struct {
	t      *testing.T
	engine *gin.Engine
}

func newApp(t *testing.T, limits map[string]config.RateLimit) *app {
	t.Helper()
	gdb := dbtest.New(t)
	cfg := &config.Config{
		Server:     config.ServerConfig{SessionSecret: "test-session-secret", SiteURL: "https://reviews.example"},
		Auth:       config.AuthConfig{JWTSecret: "test-jwt-secret", TokenTTL: time.Hour, AdminEmails: []string{"admin@example.com"}},
		RateLimits: limits,
		Feed:       config.FeedConfig{CacheTTL: time.Minute, CacheSize: 100},
	}
	cache, err := utils.NewTTLCache(cfg.Feed.CacheSize)
	require.NoError(t, err)
	tmpl, err := web.Templates()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tags := services.NewTagService(gdb)
	feed := services.NewFeedService(gdb, tags, cache, cfg.Feed.CacheTTL)
	recount := services.NewRecountService(gdb, feed)

	engine := New(Deps{
		Config:     cfg,
		Logger:     logger,
		DB:         gdb,
		Templates:  tmpl,
		Limiter:    ratelimit.New(ratelimit.NewGormStore(gdb), logger),
		Auth:       services.NewAuthService(gdb, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.AdminEmails),
		Posts:      services.NewPostService(gdb, tags, feed, recount, nil),
		Feed:       feed,
		Tags:       tags,
		Votes:      services.NewVoteService(gdb, feed, nil),
		Moderation: services.NewModerationService(gdb, feed, nil),
		Audit:      services.NewAuditService(gdb),
	})
	return &app{t: t, engine: engine}
}

func (a *app) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func (a *app) register(email string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/register", gin.H{"email": email, "password": "correct-horse"}, "")
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(a.t, w)["token"].(string)
}

func (a *app) createPost(token string, body gin.H) uint {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/posts", body, token)
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	return uint(decode(a.t, w)["id"].(float64))
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, w)
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, w.Body.String())
	assert.NotEmpty(t, errObj["message"])
	return errObj["code"].(string)
}

func TestHealthz(t *testing.T) {
	a := newApp(t, nil)
	w := a.do(http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestUnknownRouteUsesErrorBody(t *testing.T) {
	a := newApp(t, nil)
	w := a.do(http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestCreatePostAutoUpvotes(t *testing.T) {
	a := newApp(t, nil)
	token := a.register("alice@example.com")

	w := a.do(http.MethodPost, "/api/posts", gin.H{"title": "First", "content": "hello", "category": "question"}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)

	assert.Equal(t, "up", body["userVote"])
	assert.EqualValues(t, 1, body["upvotes"])
	assert.EqualValues(t, 0, body["replyCount"])
	assert.Equal(t, "question", body["category"])
	rl, ok := body["rateLimit"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 4, rl["remaining"])
	assert.NotEmpty(t, rl["resetTime"])
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
}

func TestCreatePostRequiresAuth(t *testing.T) {
	a := newApp(t, nil)
	w := a.do(http.MethodPost, "/api/posts", gin.H{"content": "hello"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, w))
}

func TestCreatePostValidation(t *testing.T) {
	a := newApp(t, nil)
	token := a.register("alice@example.com")

	for _, body := range []gin.H{
		{"content": "   "},
		{"content": "ok", "category": "memes"},
		{"content": "<script>alert(1)</script>"},
	} {
		w := a.do(http.MethodPost, "/api/posts", body, token)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	}
}

func TestCreatePostRateLimited(t *testing.T) {
	a := newApp(t, map[string]config.RateLimit{
		config.PolicyCreatePost: {Limit: 2, Window: time.Minute},
	})
	token := a.register("alice@example.com")

	a.createPost(token, gin.H{"content": "one"})
	a.createPost(token, gin.H{"content": "two"})

	w := a.do(http.MethodPost, "/api/posts", gin.H{"content": "three"}, token)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", errorCode(t, w))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestVoteTransitions(t *testing.T) {
	a := newApp(t, nil)
	author := a.register("alice@example.com")
	voter := a.register("bob@example.com")
	id := a.createPost(author, gin.H{"content": "vote on me"})
	path := fmt.Sprintf("/api/posts/%d/vote", id)

	w := a.do(http.MethodPost, path, gin.H{"voteType": "down"}, voter)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, id, body["postId"])
	assert.EqualValues(t, 1, body["upvotes"])
	assert.EqualValues(t, 1, body["downvotes"])
	assert.Equal(t, "down", body["userVote"])
	assert.Contains(t, body, "rateLimit")

	w = a.do(http.MethodPost, path, gin.H{"voteType": "up"}, voter)
	body = decode(t, w)
	assert.EqualValues(t, 2, body["upvotes"])
	assert.EqualValues(t, 0, body["downvotes"])

	w = a.do(http.MethodPost, path, gin.H{"voteType": "none"}, voter)
	body = decode(t, w)
	assert.EqualValues(t, 1, body["upvotes"])
	assert.Nil(t, body["userVote"])

	w = a.do(http.MethodPost, path, gin.H{"voteType": "sideways"}, voter)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/posts/9999/vote", gin.H{"voteType": "up"}, voter)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, w))
}

func TestModerationFlow(t *testing.T) {
	a := newApp(t, nil)
	member := a.register("member@example.com")
	admin := a.register("admin@example.com")
	id := a.createPost(member, gin.H{"content": "lock me"})
	path := fmt.Sprintf("/api/posts/%d/moderate", id)

	w := a.do(http.MethodPost, path, gin.H{"action": "lock"}, member)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", errorCode(t, w))

	w = a.do(http.MethodPost, path, gin.H{"action": "explode"}, admin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, path, gin.H{"action": "lock"}, admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["isLocked"])
	assert.Contains(t, body, "rateLimit")

	// 锁定后不能回复，但仍可投票
	w = a.do(http.MethodPost, "/api/posts", gin.H{"content": "reply", "parentId": id}, member)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = a.do(http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", id), gin.H{"voteType": "down"}, admin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, "/api/admin/audit", nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	entries := decode(t, w)["entries"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "post.lock", entries[0].(map[string]any)["action"])
}

func TestFeedAndDetail(t *testing.T) {
	a := newApp(t, nil)
	token := a.register("alice@example.com")
	root := a.createPost(token, gin.H{"title": "Root", "content": "root body"})
	reply := a.createPost(token, gin.H{"content": "a reply", "parentId": root})
	a.createPost(token, gin.H{"content": "nested", "parentId": reply})

	w := a.do(http.MethodGet, "/api/posts?limit=10", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	posts := body["posts"].([]any)
	require.Len(t, posts, 1)
	assert.EqualValues(t, root, posts[0].(map[string]any)["id"])
	assert.Nil(t, posts[0].(map[string]any)["userVote"])
	assert.Equal(t, map[string]any{"page": float64(1), "limit": float64(10), "hasMore": false}, body["pagination"])

	w = a.do(http.MethodGet, "/api/posts", nil, token)
	posts = decode(t, w)["posts"].([]any)
	assert.Equal(t, "up", posts[0].(map[string]any)["userVote"])

	w = a.do(http.MethodGet, "/api/posts?sort=sideways", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodGet, fmt.Sprintf("/api/posts/%d", root), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode(t, w)
	assert.EqualValues(t, root, detail["post"].(map[string]any)["id"])
	assert.Len(t, detail["comments"], 2)

	w = a.do(http.MethodGet, "/api/posts/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSidebarAndTags(t *testing.T) {
	a := newApp(t, nil)
	admin := a.register("admin@example.com")
	member := a.register("member@example.com")

	w := a.do(http.MethodGet, "/api/tags", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode(t, w)["tags"])

	w = a.do(http.MethodPost, "/api/admin/tags", gin.H{"name": "Review", "description": "reviews"}, member)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.do(http.MethodPost, "/api/admin/tags", gin.H{"name": "Review", "description": "reviews"}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tagID := uint(decode(t, w)["id"].(float64))

	w = a.do(http.MethodPost, "/api/admin/tags", gin.H{"name": "review"}, admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	a.createPost(member, gin.H{"content": "tagged", "tags": []string{"review"}})

	w = a.do(http.MethodGet, "/api/sidebar", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	sidebar := decode(t, w)
	assert.Len(t, sidebar["trending"], 1)
	assert.Len(t, sidebar["tags"], 1)

	w = a.do(http.MethodDelete, fmt.Sprintf("/api/admin/tags/%d", tagID), nil, admin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}

func TestLoginFlow(t *testing.T) {
	a := newApp(t, map[string]config.RateLimit{
		config.PolicyLogin: {Limit: 3, Window: time.Minute},
	})
	a.register("alice@example.com")

	w := a.do(http.MethodPost, "/api/auth/login", gin.H{"email": "alice@example.com", "password": "wrong-password"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.do(http.MethodPost, "/api/auth/login", gin.H{"email": "alice@example.com", "password": "correct-horse"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["token"])
	assert.NotContains(t, body["user"], "email")
	assert.NotEmpty(t, w.Result().Cookies())

	w = a.do(http.MethodPost, "/api/auth/login", gin.H{"email": "alice@example.com", "password": "correct-horse"}, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestThreadPage(t *testing.T) {
	a := newApp(t, nil)
	token := a.register("alice@example.com")
	root := a.createPost(token, gin.H{"title": "Thread title", "content": "root-body"})
	first := a.createPost(token, gin.H{"content": "reply-alpha", "parentId": root})
	a.createPost(token, gin.H{"content": "reply-beta", "parentId": first})

	w := a.do(http.MethodGet, fmt.Sprintf("/p/%d", root), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	html := w.Body.String()
	assert.Contains(t, html, "Thread title")
	assert.Contains(t, html, "reply-alpha")
	assert.Contains(t, html, "reply-beta")

	w = a.do(http.MethodGet, fmt.Sprintf("/p/%d?collapsed=%d", root, first), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	html = w.Body.String()
	assert.Contains(t, html, "1 hidden reply")
	assert.NotContains(t, html, "reply-alpha")
	assert.NotContains(t, html, "reply-beta")

	w = a.do(http.MethodGet, "/p/9999", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "post not found")
}

func TestSEOEndpoints(t *testing.T) {
	a := newApp(t, nil)
	token := a.register("alice@example.com")
	visible := a.createPost(token, gin.H{"title": "Best & worst", "content": "visible body"})
	reply := a.createPost(token, gin.H{"content": "a reply", "parentId": visible})

	w := a.do(http.MethodGet, "/robots.txt", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Sitemap: https://reviews.example/sitemap.xml")

	w = a.do(http.MethodGet, "/sitemap.xml", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), fmt.Sprintf("<loc>https://reviews.example/p/%d</loc>", visible))
	assert.NotContains(t, w.Body.String(), fmt.Sprintf("/p/%d</loc>", reply))

	w = a.do(http.MethodGet, "/feed.xml", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/rss+xml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<title>Best &amp; worst</title>")
	assert.Contains(t, w.Body.String(), "visible body")
}
