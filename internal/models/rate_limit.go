package models

// RateLimitEntry is one allowed request in the persistent rate-limit log.
type RateLimitEntry struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Key       string `gorm:"column:limit_key;size:64;not null;index:idx_rate_limit_lookup,priority:1" json:"key"`
	Identity  string `gorm:"size:128;not null;index:idx_rate_limit_lookup,priority:2" json:"identity"`
	Timestamp int64  `gorm:"column:hit_at;not null;index:idx_rate_limit_lookup,priority:3;index" json:"timestamp"` // unix seconds
}
