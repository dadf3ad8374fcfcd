package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reviewhub/internal/models"
	"reviewhub/internal/utils"
	"reviewhub/internal/voting"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteResult is the authoritative tally after a vote.
type VoteResult struct {
	PostID    uint             `json:"postId"`
	Upvotes   int              `json:"upvotes"`
	Downvotes int              `json:"downvotes"`
	UserVote  *models.VoteType `json:"userVote"`
}

type VoteService struct {
	db     *gorm.DB
	feed   *FeedService
	events Publisher
}

func NewVoteService(db *gorm.DB, feed *FeedService, events Publisher) *VoteService {
	return &VoteService{db: db, feed: feed, events: publisherOrNop(events)}
}

// CastVote records userID's vote on postID. VoteNone removes any existing vote.
// The returned counts are recomputed from vote rows in the same transaction.
func (s *VoteService) CastVote(ctx context.Context, postID, userID uint, dir models.VoteType) (*VoteResult, error) {
	if _, err := voting.ParseDirection(string(dir)); err != nil {
		return nil, err
	}

	var result VoteResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先更新帖子行：既校验存在性，又锁住该行，保证并发投票的重新计数串行
		res := tx.Model(&models.Post{}).
			Where("id = ? AND is_hidden = ?", postID, false).
			UpdateColumn("updated_at", time.Now())
		if res.Error != nil {
			return utils.NewInternalError("failed to load post", res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.NewNotFoundError("post")
		}

		if dir == models.VoteNone {
			if err := tx.Where("post_id = ? AND user_id = ?", postID, userID).
				Delete(&models.Vote{}).Error; err != nil {
				return utils.NewInternalError("failed to remove vote", err)
			}
		} else {
			vote := models.Vote{PostID: postID, UserID: userID, VoteType: dir}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"vote_type", "updated_at"}),
			}).Create(&vote).Error; err != nil {
				return utils.NewInternalError("failed to save vote", err)
			}
		}

		tally, err := countVotes(tx, postID)
		if err != nil {
			return utils.NewInternalError("failed to count votes", err)
		}
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumns(map[string]any{"upvotes": tally.Up, "downvotes": tally.Down}).Error; err != nil {
			return utils.NewInternalError("failed to update tally", err)
		}

		result = VoteResult{PostID: postID, Upvotes: tally.Up, Downvotes: tally.Down, UserVote: voting.Ptr(dir)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.feed.Invalidate()
	s.events.Publish(Event{Type: EventVote, PostID: postID, Data: voting.Tally{Up: result.Upvotes, Down: result.Downvotes}})
	slog.DebugContext(ctx, "vote cast", "post_id", postID, "user_id", userID, "vote", dir)
	return &result, nil
}

// countVotes 从投票记录重新统计赞踩数
func countVotes(tx *gorm.DB, postID uint) (voting.Tally, error) {
	var rows []struct {
		VoteType models.VoteType
		Total    int
	}
	err := tx.Model(&models.Vote{}).
		Select("vote_type, COUNT(*) AS total").
		Where("post_id = ?", postID).
		Group("vote_type").
		Scan(&rows).Error
	if err != nil {
		return voting.Tally{}, err
	}

	var t voting.Tally
	for _, r := range rows {
		switch r.VoteType {
		case models.VoteUp:
			t.Up = r.Total
		case models.VoteDown:
			t.Down = r.Total
		}
	}
	return t, nil
}

// UserVotes returns userID's votes on the given posts, keyed by post id.
func UserVotes(ctx context.Context, db *gorm.DB, userID uint, postIDs []uint) (map[uint]models.VoteType, error) {
	out := make(map[uint]models.VoteType, len(postIDs))
	if userID == 0 || len(postIDs) == 0 {
		return out, nil
	}
	var votes []models.Vote
	if err := db.WithContext(ctx).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Find(&votes).Error; err != nil {
		return nil, err
	}
	for _, v := range votes {
		out[v.PostID] = v.VoteType
	}
	return out, nil
}

// attachUserVotes 为帖子填充当前用户的投票状态
func attachUserVotes(ctx context.Context, db *gorm.DB, userID uint, posts []models.Post) error {
	if userID == 0 || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	votes, err := UserVotes(ctx, db, userID, ids)
	if err != nil {
		return err
	}
	for i := range posts {
		if v, ok := votes[posts[i].ID]; ok {
			posts[i].UserVote = voting.Ptr(v)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
