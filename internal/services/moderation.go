package services

import (
	"context"
	"log/slog"

	"reviewhub/internal/models"
	"reviewhub/internal/utils"
	"reviewhub/internal/voting"

	"gorm.io/gorm"
)

type ModerationService struct {
	db     *gorm.DB
	feed   *FeedService
	events Publisher
}

func NewModerationService(db *gorm.DB, feed *FeedService, events Publisher) *ModerationService {
	return &ModerationService{db: db, feed: feed, events: publisherOrNop(events)}
}

// Moderate applies a pin/unpin/lock/unlock/hide action on behalf of actor and records it
// in the audit log. Re-applying an action that is already in effect still succeeds.
func (s *ModerationService) Moderate(ctx context.Context, actor *models.User, postID uint, action string) (voting.Flags, error) {
	if actor == nil {
		return voting.Flags{}, utils.NewUnauthorizedError("")
	}
	if !voting.CanModerate(actor) {
		return voting.Flags{}, utils.NewForbiddenError("moderator role required")
	}
	act, err := voting.ParseAction(action)
	if err != nil {
		return voting.Flags{}, err
	}

	var flags voting.Flags
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.First(&post, postID).Error; err != nil {
			if isNotFound(err) {
				return utils.NewNotFoundError("post")
			}
			return utils.NewInternalError("failed to load post", err)
		}

		before := voting.FlagsOf(&post)
		next, err := voting.ApplyModeration(before, act)
		if err != nil {
			return err
		}
		flags = next

		if next != before {
			if err := tx.Model(&models.Post{}).Where("id = ?", postID).UpdateColumns(map[string]any{
				"is_pinned": next.Pinned,
				"is_locked": next.Locked,
				"is_hidden": next.Hidden,
			}).Error; err != nil {
				return utils.NewInternalError("failed to update post", err)
			}
		}

		if err := recordAudit(tx, actor, "post."+string(act), "post", postID, ""); err != nil {
			return utils.NewInternalError("failed to write audit log", err)
		}
		return nil
	})
	if err != nil {
		return voting.Flags{}, err
	}

	s.feed.Invalidate()
	s.events.Publish(Event{Type: EventModerate, PostID: postID, Data: flags})
	slog.InfoContext(ctx, "post moderated", "post_id", postID, "action", act, "actor_id", actor.ID)
	return flags, nil
}
