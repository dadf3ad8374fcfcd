package models

import (
	"time"
)

// Category 帖子分类
type Category string

const (
	CategoryGeneral          Category = "general"
	CategoryReviewDiscussion Category = "review_discussion"
	CategoryQuestion         Category = "question"
	CategoryAnnouncement     Category = "announcement"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryGeneral, CategoryReviewDiscussion, CategoryQuestion, CategoryAnnouncement:
		return true
	}
	return false
}

// Post is used for both top-level discussions and replies. ParentID == nil means top-level.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ParentID   *uint     `gorm:"index" json:"parentId"`
	Title      *string   `gorm:"size:300" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Category   Category  `gorm:"size:32;not null;default:'general';index" json:"category"`
	Upvotes    int       `gorm:"not null;default:0" json:"upvotes"`
	Downvotes  int       `gorm:"not null;default:0" json:"downvotes"`
	ReplyCount int       `gorm:"not null;default:0" json:"replyCount"`
	IsPinned   bool      `gorm:"not null;default:false;index" json:"isPinned"`
	IsLocked   bool      `gorm:"not null;default:false" json:"isLocked"`
	IsHidden   bool      `gorm:"not null;default:false;index" json:"isHidden"`
	FlairText  *string   `gorm:"size:50" json:"flairText"`
	FlairColor *string   `gorm:"size:20" json:"flairColor"`
	AuthorID   *uint     `gorm:"index" json:"authorId"`
	Author     *User     `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"author,omitempty"`
	Tags       []Tag     `gorm:"many2many:post_tags;" json:"tags,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	// 非数据库字段，用于查询时填充
	UserVote      *VoteType `gorm:"-" json:"userVote"`
	TrendingScore int       `gorm:"-" json:"trendingScore,omitempty"`
}

// IsRoot reports whether the post is a top-level discussion.
func (p *Post) IsRoot() bool {
	return p.ParentID == nil
}
