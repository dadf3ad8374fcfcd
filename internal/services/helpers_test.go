package services

import (
	"sync"
	"testing"
	"time"

	"reviewhub/internal/db/dbtest"
	"reviewhub/internal/models"
	"reviewhub/internal/utils"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type env struct {
	db         *gorm.DB
	events     *recorder
	cache      *utils.TTLCache
	tags       *TagService
	feed       *FeedService
	votes      *VoteService
	posts      *PostService
	moderation *ModerationService
	recount    *RecountService
	audit      *AuditService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := dbtest.New(t)
	cache, err := utils.NewTTLCache(100)
	require.NoError(t, err)

	e := &env{db: gdb, events: &recorder{}, cache: cache}
	e.tags = NewTagService(gdb)
	e.feed = NewFeedService(gdb, e.tags, cache, time.Minute)
	e.recount = NewRecountService(gdb, e.feed)
	e.votes = NewVoteService(gdb, e.feed, e.events)
	e.posts = NewPostService(gdb, e.tags, e.feed, e.recount, e.events)
	e.moderation = NewModerationService(gdb, e.feed, e.events)
	e.audit = NewAuditService(gdb)
	return e
}

func (e *env) user(t *testing.T, name string, role models.Role) *models.User {
	return dbtest.User(t, e.db, name, role)
}

// rawPost inserts a post directly, bypassing the service.
func (e *env) rawPost(t *testing.T, p models.Post) *models.Post {
	t.Helper()
	if p.Content == "" {
		p.Content = "<p>body</p>"
	}
	if p.Category == "" {
		p.Category = models.CategoryGeneral
	}
	require.NoError(t, e.db.Create(&p).Error)
	return &p
}

func (e *env) reload(t *testing.T, id uint) models.Post {
	t.Helper()
	var p models.Post
	require.NoError(t, e.db.First(&p, id).Error)
	return p
}

func strPtr(s string) *string { return &s }
