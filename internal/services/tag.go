package services

import (
	"context"
	"strings"

	"reviewhub/internal/models"
	"reviewhub/internal/utils"

	"gorm.io/gorm"
)

type TagService struct {
	db *gorm.DB
}

func NewTagService(db *gorm.DB) *TagService {
	return &TagService{db: db}
}

func (s *TagService) List(ctx context.Context) ([]models.Tag, error) {
	tags := make([]models.Tag, 0)
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, utils.NewInternalError("failed to load tags", err)
	}
	return tags, nil
}

// Create adds a tag. Names are trimmed and lower-cased and must be unique.
func (s *TagService) Create(ctx context.Context, actor *models.User, name, description string) (*models.Tag, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, utils.NewValidationError("tag name is required")
	}
	if len(name) > 50 {
		return nil, utils.NewValidationError("tag name must be at most 50 characters")
	}

	tag := models.Tag{Name: name, Description: strings.TrimSpace(description)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Tag{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return utils.NewInternalError("failed to check tag", err)
		}
		if count > 0 {
			return utils.NewConflictError("tag already exists")
		}
		if err := tx.Create(&tag).Error; err != nil {
			return utils.NewInternalError("failed to create tag", err)
		}
		if err := recordAudit(tx, actor, AuditTagCreate, "tag", tag.ID, name); err != nil {
			return utils.NewInternalError("failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// Delete removes a tag and its post associations.
func (s *TagService) Delete(ctx context.Context, actor *models.User, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tag models.Tag
		if err := tx.First(&tag, id).Error; err != nil {
			if isNotFound(err) {
				return utils.NewNotFoundError("tag")
			}
			return utils.NewInternalError("failed to load tag", err)
		}
		if err := tx.Exec("DELETE FROM post_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
			return utils.NewInternalError("failed to detach tag", err)
		}
		if err := tx.Delete(&tag).Error; err != nil {
			return utils.NewInternalError("failed to delete tag", err)
		}
		if err := recordAudit(tx, actor, AuditTagDelete, "tag", tag.ID, tag.Name); err != nil {
			return utils.NewInternalError("failed to write audit log", err)
		}
		return nil
	})
}

// resolve looks up tags by name. Unknown names are a validation error.
func (s *TagService) resolve(tx *gorm.DB, names []string) ([]models.Tag, error) {
	if len(names) == 0 {
		return nil, nil
	}
	seen := make(map[string]bool, len(names))
	clean := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" && !seen[n] {
			seen[n] = true
			clean = append(clean, n)
		}
	}
	if len(clean) == 0 {
		return nil, nil
	}

	var tags []models.Tag
	if err := tx.Where("name IN ?", clean).Find(&tags).Error; err != nil {
		return nil, utils.NewInternalError("failed to load tags", err)
	}
	if len(tags) != len(clean) {
		return nil, utils.NewValidationError("unknown tag")
	}
	return tags, nil
}
