// Package client is a typed Go client for the reviewhub API. Reads fill a local cache;
// votes, moderation and new posts patch it optimistically and roll back on failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"reviewhub/internal/models"
	"reviewhub/internal/optimistic"
	"reviewhub/internal/services"
	"reviewhub/internal/thread"
)

const defaultCacheSize = 1000

// RateLimit is the budget reported by the last rate-limited call.
type RateLimit struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

type Client struct {
	baseURL    string
	httpClient *http.Client

	mu        sync.Mutex
	token     string
	rateLimit *RateLimit

	posts   *optimistic.Cache[uint, models.Post]
	replies *optimistic.Cache[uint, []uint]
	tempID  uint
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	posts, err := optimistic.New[uint, models.Post](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	replies, err := optimistic.New[uint, []uint](defaultCacheSize)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		posts:      posts,
		replies:    replies,
		// 临时 ID 从最大值往下分配，不会和服务端自增 ID 撞上
		tempID: ^uint(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// LastRateLimit returns the most recent rate-limit headers seen, if any.
func (c *Client) LastRateLimit() (RateLimit, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rateLimit == nil {
		return RateLimit{}, false
	}
	return *c.rateLimit, true
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		r = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	c.recordRateLimit(resp.Header)

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) recordRateLimit(h http.Header) {
	remaining := h.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return
	}
	rl := &RateLimit{}
	rl.Limit, _ = strconv.Atoi(h.Get("X-RateLimit-Limit"))
	rl.Remaining, _ = strconv.Atoi(remaining)
	if reset, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		rl.ResetTime = time.Unix(reset, 0)
	}
	c.mu.Lock()
	c.rateLimit = rl
	c.mu.Unlock()
}

type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates an account and keeps its token for later calls.
func (c *Client) Register(ctx context.Context, email, username, password string) (*models.User, error) {
	return c.authenticate(ctx, "/api/auth/register", map[string]string{"email": email, "username": username, "password": password})
}

// Login keeps the returned token for later calls. Cached viewer state is dropped.
func (c *Client) Login(ctx context.Context, email, password string) (*models.User, error) {
	return c.authenticate(ctx, "/api/auth/login", map[string]string{"email": email, "password": password})
}

func (c *Client) authenticate(ctx context.Context, path string, body map[string]string) (*models.User, error) {
	var res authResponse
	if err := c.do(ctx, http.MethodPost, path, body, &res); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.token = res.Token
	c.mu.Unlock()
	// userVote 属于上一个身份
	c.posts.Purge()
	c.replies.Purge()
	return res.User, nil
}

// FeedParams mirrors the feed query string. Zero values use server defaults.
type FeedParams struct {
	Page     int
	Limit    int
	Category models.Category
	Sort     string
}

func (p FeedParams) query() string {
	q := url.Values{}
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Category != "" {
		q.Set("category", string(p.Category))
	}
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// Feed fetches a page of top-level posts and caches each of them.
func (c *Client) Feed(ctx context.Context, p FeedParams) (*services.FeedPage, error) {
	var page services.FeedPage
	if err := c.do(ctx, http.MethodGet, "/api/posts"+p.query(), nil, &page); err != nil {
		return nil, err
	}
	for _, post := range page.Posts {
		c.posts.Set(post.ID, post)
	}
	return &page, nil
}

// Post fetches a post with its replies and caches the whole thread.
func (c *Client) Post(ctx context.Context, id uint) (*services.PostDetail, error) {
	var detail services.PostDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d", id), nil, &detail); err != nil {
		return nil, err
	}
	if detail.Post == nil {
		return nil, fmt.Errorf("post %d: empty response", id)
	}

	c.posts.Set(detail.Post.ID, *detail.Post)
	for _, p := range detail.Comments {
		c.posts.Set(p.ID, p)
	}

	roots := thread.BuildTree(detail.Comments)
	c.replies.Set(detail.Post.ID, childIDs(roots))
	thread.Walk(roots, func(n *thread.Node) bool {
		c.replies.Set(n.Comment.ID, childIDs(n.Replies))
		return true
	})
	return &detail, nil
}

func childIDs(nodes []*thread.Node) []uint {
	ids := make([]uint, len(nodes))
	for i, n := range nodes {
		ids[i] = n.Comment.ID
	}
	return ids
}

// CachedPost returns the locally known state of a post, including pending guesses.
func (c *Client) CachedPost(id uint) (models.Post, bool) {
	return c.posts.Get(id)
}

// CachedReplies returns the cached direct replies of a post in display order.
func (c *Client) CachedReplies(id uint) ([]models.Post, bool) {
	ids, ok := c.replies.Get(id)
	if !ok {
		return nil, false
	}
	out := make([]models.Post, 0, len(ids))
	for _, rid := range ids {
		p, ok := c.posts.Get(rid)
		if !ok {
			return nil, false
		}
		out = append(out, p)
	}
	return out, true
}

func (c *Client) nextTempID() uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.tempID
	c.tempID--
	return id
}
