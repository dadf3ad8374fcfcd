package client

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"reviewhub/internal/models"
	"reviewhub/internal/services"
	"reviewhub/internal/voting"
)

// Vote patches the cached tally immediately, then reconciles with the server's count.
func (c *Client) Vote(ctx context.Context, postID uint, dir models.VoteType) (*services.VoteResult, error) {
	if _, err := voting.ParseDirection(string(dir)); err != nil {
		return nil, err
	}

	var res services.VoteResult
	_, err := c.posts.Mutate(ctx, postID,
		func(p models.Post) models.Post {
			var prev models.VoteType
			if p.UserVote != nil {
				prev = *p.UserVote
			}
			t := voting.Apply(voting.Tally{Up: p.Upvotes, Down: p.Downvotes}, prev, dir)
			p.Upvotes, p.Downvotes = t.Up, t.Down
			p.UserVote = voting.Ptr(dir)
			return p
		},
		func(ctx context.Context, p models.Post) (models.Post, error) {
			err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/vote", postID), map[string]string{"voteType": string(dir)}, &res)
			if err != nil {
				return p, err
			}
			p.Upvotes, p.Downvotes, p.UserVote = res.Upvotes, res.Downvotes, res.UserVote
			return p, nil
		})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

type moderateResponse struct {
	Success bool `json:"success"`
	voting.Flags
}

// Moderate applies a moderation action. Hidden posts are dropped from the cache so
// the next read shows what the server now serves.
func (c *Client) Moderate(ctx context.Context, postID uint, action voting.Action) (voting.Flags, error) {
	var res moderateResponse
	_, err := c.posts.Mutate(ctx, postID,
		func(p models.Post) models.Post {
			if next, err := voting.ApplyModeration(voting.FlagsOf(&p), action); err == nil {
				next.SetOn(&p)
			}
			return p
		},
		func(ctx context.Context, p models.Post) (models.Post, error) {
			err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/moderate", postID), map[string]string{"action": string(action)}, &res)
			if err != nil {
				return p, err
			}
			res.Flags.SetOn(&p)
			return p, nil
		})
	if err != nil {
		return voting.Flags{}, err
	}
	if res.Hidden {
		c.posts.Invalidate(postID)
	}
	return res.Flags, nil
}

// NewPost is the body of CreatePost.
type NewPost struct {
	Title    *string         `json:"title,omitempty"`
	Content  string          `json:"content"`
	Format   string          `json:"format,omitempty"`
	Category models.Category `json:"category,omitempty"`
	ParentID *uint           `json:"parentId,omitempty"`
	Tags     []string        `json:"tags,omitempty"`
}

// CreatePost submits a post. A reply to a cached thread shows up at the end of its
// parent's replies right away under a provisional id, replaced by the stored post
// once the server answers, or removed if it refuses.
func (c *Client) CreatePost(ctx context.Context, in NewPost) (*models.Post, error) {
	var created models.Post
	send := func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/api/posts", in, &created)
	}

	if in.ParentID == nil {
		if err := send(ctx); err != nil {
			return nil, err
		}
		c.posts.Set(created.ID, created)
		c.replies.Set(created.ID, []uint{})
		return &created, nil
	}

	parentID := *in.ParentID
	tempID := c.nextTempID()
	up := models.VoteUp
	provisional := models.Post{
		ID:       tempID,
		ParentID: in.ParentID,
		Title:    in.Title,
		Content:  in.Content,
		Category: in.Category,
		Upvotes:  1,
		UserVote: &up,
	}
	if _, cached := c.replies.Get(parentID); cached {
		c.posts.Set(tempID, provisional)
	}
	defer c.posts.Invalidate(tempID)

	_, err := c.replies.Mutate(ctx, parentID,
		func(ids []uint) []uint {
			return append(slices.Clone(ids), tempID)
		},
		func(ctx context.Context, ids []uint) ([]uint, error) {
			if err := send(ctx); err != nil {
				return ids, err
			}
			c.posts.Set(created.ID, created)
			c.replies.Set(created.ID, []uint{})
			out := slices.Clone(ids)
			if i := slices.Index(out, tempID); i >= 0 {
				out[i] = created.ID
			}
			return out, nil
		})
	if err != nil {
		return nil, err
	}
	if parent, ok := c.posts.Get(parentID); ok {
		parent.ReplyCount++
		c.posts.Set(parentID, parent)
	}
	return &created, nil
}
