package services

import (
	"context"
	"log/slog"
	"strings"

	"reviewhub/internal/models"
	"reviewhub/internal/utils"
	"reviewhub/internal/voting"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	MaxTitleLength   = 300
	MaxContentLength = 20000
	MaxThreadDepth   = 200

	// RemovedContent replaces the body of hidden replies so the thread keeps its shape.
	RemovedContent = "[removed]"
)

// 内容格式
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

type CreatePostInput struct {
	Title      *string
	Content    string
	Format     string
	Category   models.Category
	ParentID   *uint
	Tags       []string
	FlairText  *string
	FlairColor *string
}

type PostDetail struct {
	Post     *models.Post  `json:"post"`
	Comments []models.Post `json:"comments"`
}

type PostService struct {
	db      *gorm.DB
	tags    *TagService
	feed    *FeedService
	recount *RecountService
	events  Publisher
}

func NewPostService(db *gorm.DB, tags *TagService, feed *FeedService, recount *RecountService, events Publisher) *PostService {
	return &PostService{db: db, tags: tags, feed: feed, recount: recount, events: publisherOrNop(events)}
}

func (in *CreatePostInput) normalize() error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if len([]rune(title)) > MaxTitleLength {
			return utils.NewValidationError("title must be at most 300 characters")
		}
		if title == "" {
			in.Title = nil
		} else {
			in.Title = &title
		}
	}

	if len(in.Content) > MaxContentLength {
		return utils.NewValidationError("content is too long")
	}
	switch in.Format {
	case FormatMarkdown:
		in.Content = utils.MarkdownToHTML(in.Content)
	case FormatHTML, "":
		in.Content = utils.SanitizeHTML(in.Content)
	default:
		return utils.NewValidationError("format must be html or markdown")
	}
	if utils.PlainText(in.Content) == "" && !strings.Contains(in.Content, "<img") {
		return utils.NewValidationError("content is required")
	}

	if in.Category == "" {
		in.Category = models.CategoryGeneral
	}
	if !in.Category.Valid() {
		return utils.NewValidationError("unknown category: " + string(in.Category))
	}
	return nil
}

// Create stores a new post or reply. The author's up vote is recorded with it, and a
// reply bumps its parent's reply count. Replies beneath a locked post are refused.
func (s *PostService) Create(ctx context.Context, author *models.User, in CreatePostInput) (*models.Post, error) {
	if author == nil {
		return nil, utils.NewUnauthorizedError("")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	post := models.Post{
		ParentID:   in.ParentID,
		Title:      in.Title,
		Content:    in.Content,
		Category:   in.Category,
		Upvotes:    1,
		FlairText:  in.FlairText,
		FlairColor: in.FlairColor,
		AuthorID:   &author.ID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.ParentID != nil {
			if err := checkReplyable(tx, *in.ParentID); err != nil {
				return err
			}
		}

		tags, err := s.tags.resolve(tx, in.Tags)
		if err != nil {
			return err
		}
		post.Tags = tags

		if err := tx.Create(&post).Error; err != nil {
			return utils.NewInternalError("failed to create post", err)
		}
		if err := tx.Create(&models.Vote{PostID: post.ID, UserID: author.ID, VoteType: models.VoteUp}).Error; err != nil {
			return utils.NewInternalError("failed to record vote", err)
		}
		if in.ParentID != nil {
			if err := tx.Model(&models.Post{}).Where("id = ?", *in.ParentID).
				UpdateColumn("reply_count", gorm.Expr("reply_count + 1")).Error; err != nil {
				return utils.NewInternalError("failed to update reply count", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	post.Author = author
	post.UserVote = voting.Ptr(models.VoteUp)
	post.ReplyCount = 0

	if in.ParentID != nil && s.recount != nil {
		s.recount.Schedule(*in.ParentID)
	}
	s.feed.Invalidate()
	s.events.Publish(Event{Type: EventNewPost, PostID: post.ID, Data: map[string]any{"parentId": post.ParentID}})
	slog.InfoContext(ctx, "post created", "post_id", post.ID, "parent_id", post.ParentID, "author_id", author.ID)
	return &post, nil
}

// checkReplyable walks from parentID to its root. The parent must exist and be
// visible, and no post on the way up may be locked.
func checkReplyable(tx *gorm.DB, parentID uint) error {
	seen := make(map[uint]bool)
	id := parentID
	for depth := 0; depth < MaxThreadDepth; depth++ {
		var p models.Post
		if err := tx.Select("id", "parent_id", "is_locked", "is_hidden").First(&p, id).Error; err != nil {
			if isNotFound(err) {
				if id == parentID {
					return utils.NewNotFoundError("parent post")
				}
				// 祖先缺失时当作根节点处理
				return nil
			}
			return utils.NewInternalError("failed to load parent post", err)
		}
		if id == parentID && p.IsHidden {
			return utils.NewNotFoundError("parent post")
		}
		if p.IsLocked {
			return utils.NewForbiddenError("thread is locked")
		}
		seen[id] = true
		if p.ParentID == nil || seen[*p.ParentID] {
			return nil
		}
		id = *p.ParentID
	}
	return nil
}

// Get loads a post and every reply beneath it as a flat list. Hidden replies keep
// their place with the body replaced. A hidden post is only visible to moderators.
func (s *PostService) Get(ctx context.Context, id uint, viewer *models.User) (*PostDetail, error) {
	var (
		post     models.Post
		comments []models.Post
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := s.db.WithContext(gctx).Preload("Author").Preload("Tags").First(&post, id).Error
		if isNotFound(err) {
			return utils.NewNotFoundError("post")
		}
		if err != nil {
			return utils.NewInternalError("failed to load post", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		comments, err = s.descendants(gctx, id)
		if err != nil {
			return utils.NewInternalError("failed to load comments", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if post.IsHidden && !voting.CanModerate(viewer) {
		return nil, utils.NewNotFoundError("post")
	}

	for i := range comments {
		if comments[i].IsHidden {
			comments[i].Content = RemovedContent
			comments[i].Author = nil
			comments[i].AuthorID = nil
		}
	}

	if viewer != nil {
		all := append([]models.Post{post}, comments...)
		if err := attachUserVotes(ctx, s.db, viewer.ID, all); err != nil {
			return nil, utils.NewInternalError("failed to load votes", err)
		}
		post = all[0]
		comments = all[1:]
	}

	return &PostDetail{Post: &post, Comments: comments}, nil
}

// descendants loads the subtree below rootID one level at a time.
func (s *PostService) descendants(ctx context.Context, rootID uint) ([]models.Post, error) {
	out := make([]models.Post, 0)
	seen := map[uint]bool{rootID: true}
	frontier := []uint{rootID}

	for depth := 0; len(frontier) > 0 && depth < MaxThreadDepth; depth++ {
		var level []models.Post
		if err := s.db.WithContext(ctx).
			Preload("Author").
			Where("parent_id IN ?", frontier).
			Order("created_at ASC, id ASC").
			Find(&level).Error; err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, p := range level {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
			frontier = append(frontier, p.ID)
		}
	}
	return out, nil
}
