package services

import (
	"context"
	"testing"

	"reviewhub/internal/models"
	"reviewhub/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCastVoteIdempotent(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "alice", models.RoleUser)
	p := e.rawPost(t, models.Post{})
	ctx := context.Background()

	first, err := e.votes.CastVote(ctx, p.ID, u.ID, models.VoteUp)
	require.NoError(t, err)
	second, err := e.votes.CastVote(ctx, p.ID, u.ID, models.VoteUp)
	require.NoError(t, err)

	assert.Equal(t, first.Upvotes, second.Upvotes)
	assert.Equal(t, first.Downvotes, second.Downvotes)
	assert.Equal(t, 1, second.Upvotes)
	require.NotNil(t, second.UserVote)
	assert.Equal(t, models.VoteUp, *second.UserVote)
}

func TestCastVoteSwitchCountsOnce(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "alice", models.RoleUser)
	p := e.rawPost(t, models.Post{})
	ctx := context.Background()

	_, err := e.votes.CastVote(ctx, p.ID, u.ID, models.VoteUp)
	require.NoError(t, err)
	res, err := e.votes.CastVote(ctx, p.ID, u.ID, models.VoteDown)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Upvotes)
	assert.Equal(t, 1, res.Downvotes)

	var rows int64
	e.db.Model(&models.Vote{}).Where("post_id = ?", p.ID).Count(&rows)
	assert.EqualValues(t, 1, rows)

	stored := e.reload(t, p.ID)
	assert.Equal(t, 0, stored.Upvotes)
	assert.Equal(t, 1, stored.Downvotes)
}

func TestCastVoteNoneRemovesVote(t *testing.T) {
	e := newEnv(t)
	alice := e.user(t, "alice", models.RoleUser)
	bob := e.user(t, "bob", models.RoleUser)
	p := e.rawPost(t, models.Post{})
	ctx := context.Background()

	_, err := e.votes.CastVote(ctx, p.ID, alice.ID, models.VoteUp)
	require.NoError(t, err)
	_, err = e.votes.CastVote(ctx, p.ID, bob.ID, models.VoteUp)
	require.NoError(t, err)

	res, err := e.votes.CastVote(ctx, p.ID, alice.ID, models.VoteNone)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upvotes)
	assert.Nil(t, res.UserVote)

	// removing a vote that does not exist is fine
	res, err = e.votes.CastVote(ctx, p.ID, alice.ID, models.VoteNone)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upvotes)
}

func TestCastVoteRecomputesDriftedTally(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "alice", models.RoleUser)
	p := e.rawPost(t, models.Post{Upvotes: 40, Downvotes: 7})

	res, err := e.votes.CastVote(context.Background(), p.ID, u.ID, models.VoteDown)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Upvotes)
	assert.Equal(t, 1, res.Downvotes)
}

func TestCastVoteErrors(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "alice", models.RoleUser)
	hidden := e.rawPost(t, models.Post{IsHidden: true})
	ctx := context.Background()

	_, err := e.votes.CastVote(ctx, 999, u.ID, models.VoteUp)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))

	_, err = e.votes.CastVote(ctx, hidden.ID, u.ID, models.VoteUp)
	assert.True(t, utils.IsKind(err, utils.KindNotFound))

	_, err = e.votes.CastVote(ctx, hidden.ID, u.ID, models.VoteType("meh"))
	assert.True(t, utils.IsKind(err, utils.KindValidation))
}

func TestCastVoteOnLockedPostIsAllowed(t *testing.T) {
	e := newEnv(t)
	u := e.user(t, "alice", models.RoleUser)
	p := e.rawPost(t, models.Post{IsLocked: true})

	res, err := e.votes.CastVote(context.Background(), p.ID, u.ID, models.VoteUp)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Upvotes)
	assert.Equal(t, []string{EventVote}, e.events.types())
}
