package handlers

import (
	"net/http"

	"reviewhub/internal/middleware"
	"reviewhub/internal/response"
	"reviewhub/internal/services"
	"reviewhub/internal/utils"
	"reviewhub/internal/voting"

	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	votes *services.VoteService
}

func NewVoteHandler(votes *services.VoteService) *VoteHandler {
	return &VoteHandler{votes: votes}
}

type voteRequest struct {
	VoteType string `json:"voteType"`
}

type voteResponse struct {
	*services.VoteResult
	RateLimit *rateLimitInfo `json:"rateLimit,omitempty"`
}

// Vote sets the caller's vote on a post. voteType "none" retracts it.
func (h *VoteHandler) Vote(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		response.Fail(c, utils.NewUnauthorizedError(""))
		return
	}
	id, err := parseID(c)
	if err != nil {
		response.Fail(c, err)
		return
	}
	var req voteRequest
	if err := bindJSON(c, &req); err != nil {
		response.Fail(c, err)
		return
	}
	dir, err := voting.ParseDirection(req.VoteType)
	if err != nil {
		response.Fail(c, err)
		return
	}

	res, err := h.votes.CastVote(c.Request.Context(), id, user.ID, dir)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, http.StatusOK, voteResponse{VoteResult: res, RateLimit: rateLimitOf(c)})
}
