package services

import (
	"context"

	"reviewhub/internal/models"
	"reviewhub/internal/utils"

	"gorm.io/gorm"
)

// 审计动作
const (
	AuditTagCreate = "tag.create"
	AuditTagDelete = "tag.delete"
)

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// recordAudit writes an entry using tx so it commits with the change it describes.
func recordAudit(tx *gorm.DB, actor *models.User, action, targetType string, targetID uint, detail string) error {
	entry := models.AuditLog{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	}
	if actor != nil {
		entry.ActorID = &actor.ID
	}
	return tx.Create(&entry).Error
}

type AuditPage struct {
	Entries    []models.AuditLog `json:"entries"`
	Pagination Pagination        `json:"pagination"`
}

// List returns audit entries, newest first.
func (s *AuditService) List(ctx context.Context, page, limit int) (*AuditPage, error) {
	page = max(page, 1)
	limit = utils.ClampInt(limit, DefaultPageSize, 1, MaxPageSize)

	var entries []models.AuditLog
	if err := s.db.WithContext(ctx).
		Preload("Actor").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, utils.NewInternalError("failed to load audit log", err)
	}

	return &AuditPage{
		Entries:    entries,
		Pagination: Pagination{Page: page, Limit: limit, HasMore: len(entries) == limit},
	}, nil
}
