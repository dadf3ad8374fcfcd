package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reviewhub/internal/models"
	"reviewhub/internal/utils"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// 排序方式
const (
	SortRecent   = "recent"
	SortPopular  = "popular"
	SortTrending = "trending"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	SidebarTrending = 5

	feedCachePrefix = "feed:"
)

type FeedQuery struct {
	Page     int
	Limit    int
	Category models.Category
	Sort     string
	ViewerID uint
}

// Pagination.HasMore means the page came back full, not that more rows are known to exist.
type Pagination struct {
	Page    int  `json:"page"`
	Limit   int  `json:"limit"`
	HasMore bool `json:"hasMore"`
}

type FeedPage struct {
	Posts      []models.Post `json:"posts"`
	Pagination Pagination    `json:"pagination"`
}

type Sidebar struct {
	Trending []models.Post `json:"trending"`
	Tags     []models.Tag  `json:"tags"`
}

type FeedService struct {
	db    *gorm.DB
	tags  *TagService
	cache *utils.TTLCache
	ttl   time.Duration
	now   func() time.Time

	// gen 每次 Invalidate 加一，查询期间变化过的结果不写缓存
	mu  sync.Mutex
	gen uint64
}

// NewFeedService caches anonymous pages in cache for ttl. A nil cache disables caching.
func NewFeedService(db *gorm.DB, tags *TagService, cache *utils.TTLCache, ttl time.Duration) *FeedService {
	return &FeedService{db: db, tags: tags, cache: cache, ttl: ttl, now: time.Now}
}

// Normalize fills defaults and validates a query.
func (q FeedQuery) Normalize() (FeedQuery, error) {
	q.Page = max(q.Page, 1)
	q.Limit = utils.ClampInt(q.Limit, DefaultPageSize, 1, MaxPageSize)
	if q.Sort == "" {
		q.Sort = SortRecent
	}
	switch q.Sort {
	case SortRecent, SortPopular, SortTrending:
	default:
		return q, utils.NewValidationError("sort must be one of recent, popular, trending")
	}
	if q.Category != "" && !q.Category.Valid() {
		return q, utils.NewValidationError("unknown category: " + string(q.Category))
	}
	return q, nil
}

func (q FeedQuery) cacheKey() string {
	return fmt.Sprintf("%s%s:%s:%d:%d", feedCachePrefix, q.Sort, q.Category, q.Page, q.Limit)
}

// List returns one page of visible top-level posts.
func (s *FeedService) List(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	q, err := q.Normalize()
	if err != nil {
		return nil, err
	}

	page, err := s.cachedPage(ctx, q)
	if err != nil {
		return nil, err
	}

	// 缓存中的分页是共享的，填充用户投票前先复制
	out := &FeedPage{Posts: make([]models.Post, len(page.Posts)), Pagination: page.Pagination}
	copy(out.Posts, page.Posts)
	if err := attachUserVotes(ctx, s.db, q.ViewerID, out.Posts); err != nil {
		return nil, utils.NewInternalError("failed to load votes", err)
	}
	return out, nil
}

func (s *FeedService) cachedPage(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	key := q.cacheKey()
	if s.cache != nil {
		if cached, ok := s.cache.Get(key).(*FeedPage); ok {
			return cached, nil
		}
	}

	gen := s.generation()
	posts, err := s.query(ctx, q)
	if err != nil {
		return nil, utils.NewInternalError("failed to load feed", err)
	}

	page := &FeedPage{
		Posts:      posts,
		Pagination: Pagination{Page: q.Page, Limit: q.Limit, HasMore: len(posts) == q.Limit},
	}
	if s.cache != nil {
		s.mu.Lock()
		if s.gen == gen {
			s.cache.Set(key, page, s.ttl)
		}
		s.mu.Unlock()
	}
	return page, nil
}

func (s *FeedService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *FeedService) query(ctx context.Context, q FeedQuery) ([]models.Post, error) {
	tx := s.db.WithContext(ctx).Model(&models.Post{}).
		Preload("Author").
		Preload("Tags").
		Where("parent_id IS NULL AND is_hidden = ?", false)

	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}

	switch q.Sort {
	case SortPopular:
		tx = tx.Order("is_pinned DESC").Order("upvotes DESC").Order("created_at DESC")
	case SortTrending:
		tx = tx.Where("created_at >= ?", s.now().Add(-utils.TrendingWindow)).
			Order("is_pinned DESC").
			Order(utils.TrendingSQL + " DESC").
			Order("created_at DESC")
	default:
		tx = tx.Order("is_pinned DESC").Order("created_at DESC")
	}

	posts := make([]models.Post, 0, q.Limit)
	if err := tx.Order("id DESC").
		Offset((q.Page - 1) * q.Limit).
		Limit(q.Limit).
		Find(&posts).Error; err != nil {
		return nil, err
	}

	if q.Sort == SortTrending {
		for i := range posts {
			posts[i].TrendingScore = utils.EngagementScore(posts[i].Upvotes, posts[i].Downvotes, posts[i].ReplyCount)
		}
	}
	return posts, nil
}

// Sidebar loads the trending list and the tag list concurrently.
func (s *FeedService) Sidebar(ctx context.Context) (*Sidebar, error) {
	var sb Sidebar
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		page, err := s.List(gctx, FeedQuery{Page: 1, Limit: SidebarTrending, Sort: SortTrending})
		if err != nil {
			return err
		}
		sb.Trending = page.Posts
		return nil
	})
	g.Go(func() error {
		tags, err := s.tags.List(gctx)
		if err != nil {
			return err
		}
		sb.Tags = tags
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &sb, nil
}

// Invalidate drops every cached feed page. Called after any mutation.
func (s *FeedService) Invalidate() {
	if s == nil || s.cache == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cache.DeletePrefix(feedCachePrefix)
}
