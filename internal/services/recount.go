package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"reviewhub/internal/models"

	"gorm.io/gorm"
)

const (
	recountQueueSize = 1000
	recountBatchSize = 50
	recountInterval  = 500 * time.Millisecond
)

// RecountService 异步重新统计帖子的赞踩数和回复数
// 写路径已经维护了这些字段，这里负责修复并发或历史数据造成的偏差
type RecountService struct {
	db      *gorm.DB
	feed    *FeedService
	queue   chan uint // 待更新的帖子 ID 队列
	pending map[uint]bool
	mu      sync.Mutex
}

func NewRecountService(db *gorm.DB, feed *FeedService) *RecountService {
	return &RecountService{
		db:      db,
		feed:    feed,
		queue:   make(chan uint, recountQueueSize),
		pending: make(map[uint]bool),
	}
}

// Run processes the queue until ctx is done.
func (s *RecountService) Run(ctx context.Context) {
	// 批量处理：收集一批请求后统一处理
	batch := make([]uint, 0, recountBatchSize)
	ticker := time.NewTicker(recountInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				s.processBatch(context.Background(), batch)
			}
			return
		case postID := <-s.queue:
			batch = append(batch, postID)
			if len(batch) >= recountBatchSize {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				s.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// Schedule 将帖子加入更新队列（异步），已在队列中的帖子会被跳过
func (s *RecountService) Schedule(postID uint) {
	s.mu.Lock()
	if s.pending[postID] {
		s.mu.Unlock()
		return
	}
	s.pending[postID] = true
	s.mu.Unlock()

	select {
	case s.queue <- postID:
	default:
		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
		slog.Warn("recount queue full, skipping post", "post_id", postID)
	}
}

func (s *RecountService) processBatch(ctx context.Context, postIDs []uint) {
	for _, postID := range postIDs {
		if err := s.RecountPost(ctx, postID); err != nil {
			slog.Error("recount failed", "post_id", postID, "error", err)
		}

		s.mu.Lock()
		delete(s.pending, postID)
		s.mu.Unlock()
	}
	s.feed.Invalidate()
}

// RecountPost recomputes one post's vote tally and direct reply count from source rows.
func (s *RecountService) RecountPost(ctx context.Context, postID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tally, err := countVotes(tx, postID)
		if err != nil {
			return err
		}

		var replies int64
		if err := tx.Model(&models.Post{}).Where("parent_id = ?", postID).Count(&replies).Error; err != nil {
			return err
		}

		return tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumns(map[string]any{
			"upvotes":     tally.Up,
			"downvotes":   tally.Down,
			"reply_count": replies,
		}).Error
	})
}

// RecountSince recounts every post created after since. Used by the nightly job.
func (s *RecountService) RecountSince(ctx context.Context, since time.Time) (int, error) {
	var ids []uint
	if err := s.db.WithContext(ctx).Model(&models.Post{}).
		Where("created_at >= ?", since).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}

	count := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if err := s.RecountPost(ctx, id); err != nil {
			slog.Error("recount failed", "post_id", id, "error", err)
			continue
		}
		count++
	}
	s.feed.Invalidate()
	return count, nil
}
