package models

import (
	"time"
)

// VoteType is the direction of a vote. VoteNone is only ever a request value:
// it deletes the row instead of being stored.
type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
	VoteNone VoteType = "none"
)

// Vote is keyed by (post_id, user_id); at most one row per pair.
type Vote struct {
	PostID    uint      `gorm:"primaryKey;autoIncrement:false" json:"postId"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"userId"`
	VoteType  VoteType  `gorm:"size:8;not null" json:"voteType"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
