// Package voting holds the pure state transitions for votes and moderation flags.
// Both the service layer and the API client's optimistic patches use them.
package voting

import (
	"reviewhub/internal/models"
	"reviewhub/internal/utils"
)

// Tally is a post's vote aggregate.
type Tally struct {
	Up   int `json:"upvotes"`
	Down int `json:"downvotes"`
}

// ParseDirection validates a requested vote type.
func ParseDirection(s string) (models.VoteType, error) {
	switch v := models.VoteType(s); v {
	case models.VoteUp, models.VoteDown, models.VoteNone:
		return v, nil
	case "":
		return "", utils.NewValidationError("voteType is required")
	default:
		return "", utils.NewValidationError("voteType must be one of up, down, none")
	}
}

// Apply moves a tally from a user's previous vote to the next one. An empty
// VoteType is treated as none. Counts never go below zero.
func Apply(t Tally, prev, next models.VoteType) Tally {
	prev, next = normalize(prev), normalize(next)
	if prev == next {
		return t
	}

	switch prev {
	case models.VoteUp:
		t.Up--
	case models.VoteDown:
		t.Down--
	}
	switch next {
	case models.VoteUp:
		t.Up++
	case models.VoteDown:
		t.Down++
	}

	if t.Up < 0 {
		t.Up = 0
	}
	if t.Down < 0 {
		t.Down = 0
	}
	return t
}

func normalize(v models.VoteType) models.VoteType {
	if v == "" {
		return models.VoteNone
	}
	return v
}

// Ptr returns nil for none, so JSON renders userVote as null.
func Ptr(v models.VoteType) *models.VoteType {
	if normalize(v) == models.VoteNone {
		return nil
	}
	return &v
}
