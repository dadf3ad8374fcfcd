package ratelimit

import (
	"context"
	"time"

	"reviewhub/internal/models"

	"gorm.io/gorm"
)

// GormStore keeps the request log in the rate_limit_entries table.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Expire(ctx context.Context, key, identity string, before int64) error {
	return s.db.WithContext(ctx).
		Where("limit_key = ? AND identity = ? AND hit_at < ?", key, identity, before).
		Delete(&models.RateLimitEntry{}).Error
}

func (s *GormStore) Window(ctx context.Context, key, identity string, since int64) (int, int64, error) {
	var row struct {
		Count  int64
		Oldest *int64
	}
	err := s.db.WithContext(ctx).Model(&models.RateLimitEntry{}).
		Select("COUNT(*) AS count, MIN(hit_at) AS oldest").
		Where("limit_key = ? AND identity = ? AND hit_at >= ?", key, identity, since).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	var oldest int64
	if row.Oldest != nil {
		oldest = *row.Oldest
	}
	return int(row.Count), oldest, nil
}

func (s *GormStore) Record(ctx context.Context, key, identity string, at int64, _ time.Duration) error {
	return s.db.WithContext(ctx).Create(&models.RateLimitEntry{
		Key:       key,
		Identity:  identity,
		Timestamp: at,
	}).Error
}

// PruneBefore deletes every entry older than before, across all keys. Run periodically.
func (s *GormStore) PruneBefore(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("hit_at < ?", before.Unix()).
		Delete(&models.RateLimitEntry{})
	return res.RowsAffected, res.Error
}
