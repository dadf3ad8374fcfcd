package models

import (
	"time"
)

// Role 用户角色
type Role string

const (
	RoleUser   Role = "user"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// CanModerate is the one capability check for pin/lock/hide. Editors and admins hold it.
func CanModerate(r Role) bool {
	return r == RoleEditor || r == RoleAdmin
}

// IsAdmin gates the back-office (tags, audit log).
func IsAdmin(r Role) bool {
	return r == RoleAdmin
}

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:50;not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;not null" json:"-"`
	Password  string    `gorm:"not null" json:"-"` // Hash
	Avatar    string    `gorm:"default:🌱" json:"avatar"`
	Role      Role      `gorm:"size:20;default:'user';not null" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"-"`
}
