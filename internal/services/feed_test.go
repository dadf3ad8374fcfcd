package services

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"reviewhub/internal/models"
	"reviewhub/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var feedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func ago(d time.Duration) time.Time { return feedNow.Add(-d) }

func ids(posts []models.Post) []uint {
	out := make([]uint, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestFeedRecentPinnedFirst(t *testing.T) {
	e := newEnv(t)
	old := e.rawPost(t, models.Post{CreatedAt: ago(5 * time.Hour)})
	pinned := e.rawPost(t, models.Post{CreatedAt: ago(10 * time.Hour), IsPinned: true})
	fresh := e.rawPost(t, models.Post{CreatedAt: ago(time.Hour)})
	e.rawPost(t, models.Post{CreatedAt: ago(time.Minute), IsHidden: true})
	e.rawPost(t, models.Post{CreatedAt: ago(time.Minute), ParentID: &old.ID})

	page, err := e.feed.List(context.Background(), FeedQuery{})
	require.NoError(t, err)

	assert.Equal(t, []uint{pinned.ID, fresh.ID, old.ID}, ids(page.Posts))
	assert.Equal(t, Pagination{Page: 1, Limit: DefaultPageSize, HasMore: false}, page.Pagination)
}

func TestFeedPopular(t *testing.T) {
	e := newEnv(t)
	low := e.rawPost(t, models.Post{Upvotes: 1})
	high := e.rawPost(t, models.Post{Upvotes: 9})
	pinned := e.rawPost(t, models.Post{Upvotes: 0, IsPinned: true})

	page, err := e.feed.List(context.Background(), FeedQuery{Sort: SortPopular})
	require.NoError(t, err)
	assert.Equal(t, []uint{pinned.ID, high.ID, low.ID}, ids(page.Posts))
}

func TestFeedTrending(t *testing.T) {
	e := newEnv(t)
	e.feed.now = func() time.Time { return feedNow }

	// score = (up+down)*2 + replies: a is 8, b is 11, pinned is 0
	a := e.rawPost(t, models.Post{CreatedAt: ago(time.Hour), Upvotes: 3, Downvotes: 1})
	b := e.rawPost(t, models.Post{CreatedAt: ago(2 * time.Hour), Upvotes: 1, ReplyCount: 9})
	pinned := e.rawPost(t, models.Post{CreatedAt: ago(3 * time.Hour), IsPinned: true})
	// outside the window
	e.rawPost(t, models.Post{CreatedAt: ago(72 * time.Hour), Upvotes: 100})

	page, err := e.feed.List(context.Background(), FeedQuery{Sort: SortTrending})
	require.NoError(t, err)

	assert.Equal(t, []uint{pinned.ID, b.ID, a.ID}, ids(page.Posts))
	assert.Equal(t, 11, page.Posts[1].TrendingScore)
	assert.Equal(t, 8, page.Posts[2].TrendingScore)
}

func TestFeedPaginationAndCategory(t *testing.T) {
	e := newEnv(t)
	for i := 0; i < 5; i++ {
		e.rawPost(t, models.Post{CreatedAt: ago(time.Duration(i) * time.Hour), Category: models.CategoryQuestion})
	}
	e.rawPost(t, models.Post{Category: models.CategoryAnnouncement})
	ctx := context.Background()

	first, err := e.feed.List(ctx, FeedQuery{Page: 1, Limit: 2, Category: models.CategoryQuestion})
	require.NoError(t, err)
	assert.Len(t, first.Posts, 2)
	assert.True(t, first.Pagination.HasMore)

	last, err := e.feed.List(ctx, FeedQuery{Page: 3, Limit: 2, Category: models.CategoryQuestion})
	require.NoError(t, err)
	assert.Len(t, last.Posts, 1)
	assert.False(t, last.Pagination.HasMore)

	clamped, err := e.feed.List(ctx, FeedQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, clamped.Pagination.Limit)
}

func TestFeedQueryValidation(t *testing.T) {
	e := newEnv(t)
	_, err := e.feed.List(context.Background(), FeedQuery{Sort: "hot"})
	assert.True(t, utils.IsKind(err, utils.KindValidation))

	_, err = e.feed.List(context.Background(), FeedQuery{Category: "memes"})
	assert.True(t, utils.IsKind(err, utils.KindValidation))
}

func TestFeedViewerVoteDoesNotLeakIntoCache(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "alice", models.RoleUser)
	p := e.rawPost(t, models.Post{})
	ctx := context.Background()
	require.NoError(t, e.db.Create(&models.Vote{PostID: p.ID, UserID: u.ID, VoteType: models.VoteDown}).Error)

	mine, err := e.feed.List(ctx, FeedQuery{ViewerID: u.ID})
	require.NoError(t, err)
	require.NotNil(t, mine.Posts[0].UserVote)
	assert.Equal(t, models.VoteDown, *mine.Posts[0].UserVote)

	anon, err := e.feed.List(ctx, FeedQuery{})
	require.NoError(t, err)
	assert.Nil(t, anon.Posts[0].UserVote)
}

func TestFeedCacheInvalidatedByVote(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "alice", models.RoleUser)
	p := e.rawPost(t, models.Post{})
	ctx := context.Background()

	before, err := e.feed.List(ctx, FeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, 0, before.Posts[0].Upvotes)

	_, err = e.votes.CastVote(ctx, p.ID, u.ID, models.VoteUp)
	require.NoError(t, err)

	after, err := e.feed.List(ctx, FeedQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, after.Posts[0].Upvotes)
}

func TestSidebar(t *testing.T) {
	e := newEnv(t)
	_, err := e.tags.Create(context.Background(), nil, "review", "")
	require.NoError(t, err)
	for i := 0; i < 7; i++ {
		e.rawPost(t, models.Post{Upvotes: i})
	}

	sb, err := e.feed.Sidebar(context.Background())
	require.NoError(t, err)
	assert.Len(t, sb.Trending, SidebarTrending)
	assert.Equal(t, 6, sb.Trending[0].Upvotes)
	require.Len(t, sb.Tags, 1)
	assert.Equal(t, "review", sb.Tags[0].Name)
}

func TestFeedPageLoadedAcrossInvalidateIsNotCached(t *testing.T) {
	e := newEnv(t)
	e.rawPost(t, models.Post{})
	ctx := context.Background()

	// 模拟查询进行中另一个请求完成了投票
	var armed atomic.Bool
	armed.Store(true)
	require.NoError(t, e.db.Callback().Query().After("gorm:query").Register("test:invalidate_during_query", func(*gorm.DB) {
		if armed.CompareAndSwap(true, false) {
			e.feed.Invalidate()
		}
	}))

	q, err := FeedQuery{}.Normalize()
	require.NoError(t, err)

	_, err = e.feed.List(ctx, FeedQuery{})
	require.NoError(t, err)
	assert.False(t, armed.Load())
	assert.Nil(t, e.cache.Get(q.cacheKey()))

	_, err = e.feed.List(ctx, FeedQuery{})
	require.NoError(t, err)
	assert.NotNil(t, e.cache.Get(q.cacheKey()))
}
