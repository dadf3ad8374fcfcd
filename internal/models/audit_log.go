package models

import (
	"time"
)

// AuditLog 后台操作记录
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActorID    *uint     `gorm:"index" json:"actorId"`
	Actor      *User     `gorm:"foreignKey:ActorID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"actor,omitempty"`
	Action     string    `gorm:"size:50;not null;index" json:"action"`
	TargetType string    `gorm:"size:20;not null" json:"targetType"` // "post", "tag"
	TargetID   uint      `gorm:"not null" json:"targetId"`
	Detail     string    `gorm:"size:500" json:"detail"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}
