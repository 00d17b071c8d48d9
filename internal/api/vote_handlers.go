package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nearlist/nearlist/internal/engine"
	"github.com/nearlist/nearlist/internal/middleware"
	"github.com/nearlist/nearlist/internal/owner"
	"github.com/nearlist/nearlist/internal/reputation"
	"github.com/nearlist/nearlist/internal/validate"
)

// VoteHandlers holds dependencies for vote HTTP handlers.
type VoteHandlers struct {
	engine *engine.Engine
}

// NewVoteHandlers creates a new VoteHandlers instance.
func NewVoteHandlers(eng *engine.Engine) *VoteHandlers {
	return &VoteHandlers{engine: eng}
}

// castVoteRequest is the body of POST /votes.
type castVoteRequest struct {
	VoterID     string `json:"voter_id"`
	TargetID    string `json:"target_id"`
	WeightClass string `json:"weight_class"`
}

// revokeVoteRequest is the body of DELETE /votes.
type revokeVoteRequest struct {
	VoterID  string `json:"voter_id"`
	TargetID string `json:"target_id"`
}

// voteResponse carries the target's recomputed reputation after a mutation.
type voteResponse struct {
	TargetID   string             `json:"target_id"`
	Reputation reputation.Summary `json:"reputation"`
}

// HandleVotes dispatches POST and DELETE on /votes.
func (h *VoteHandlers) HandleVotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.castVote(w, r)
	case http.MethodDelete:
		h.revokeVote(w, r)
	default:
		writeDomainError(w, r, ErrCodeBadRequest, "Method not allowed")
	}
}

func (h *VoteHandlers) castVote(w http.ResponseWriter, r *http.Request) {
	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDomainError(w, r, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	voterID, targetID, ok := h.validateVoteIDs(w, r, req.VoterID, req.TargetID)
	if !ok {
		return
	}
	req.VoterID, req.TargetID = voterID, targetID

	weight, err := reputation.ParseWeightClass(req.WeightClass)
	if err != nil {
		writeDomainError(w, r, ErrCodeInvalidWeightClass, "weight_class must be one of tier1, tier2, tier3, tier4")
		return
	}

	summary, err := h.engine.CastVote(r.Context(), req.VoterID, req.TargetID, weight)
	if err != nil {
		h.writeVoteError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, voteResponse{
		TargetID:   req.TargetID,
		Reputation: summary,
	})
}

func (h *VoteHandlers) revokeVote(w http.ResponseWriter, r *http.Request) {
	var req revokeVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDomainError(w, r, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	voterID, targetID, ok := h.validateVoteIDs(w, r, req.VoterID, req.TargetID)
	if !ok {
		return
	}
	req.VoterID, req.TargetID = voterID, targetID

	summary, err := h.engine.RevokeVote(r.Context(), req.VoterID, req.TargetID)
	if err != nil {
		h.writeVoteError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, voteResponse{
		TargetID:   req.TargetID,
		Reputation: summary,
	})
}

// validateVoteIDs validates both vote participant IDs, writing a validation
// error response when either is malformed.
func (h *VoteHandlers) validateVoteIDs(w http.ResponseWriter, r *http.Request, voterID, targetID string) (string, string, bool) {
	voter, err := validate.OwnerID(voterID)
	if err != nil {
		writeDomainError(w, r, ErrCodeValidation, "voter_id is required and must be a valid identifier")
		return "", "", false
	}
	target, err := validate.OwnerID(targetID)
	if err != nil {
		writeDomainError(w, r, ErrCodeValidation, "target_id is required and must be a valid identifier")
		return "", "", false
	}
	return voter, target, true
}

func (h *VoteHandlers) writeVoteError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reputation.ErrSelfVote):
		writeDomainError(w, r, ErrCodeSelfVote, "Voting for your own listings is not allowed")
	case errors.Is(err, reputation.ErrCooldownActive):
		writeDomainError(w, r, ErrCodeCooldownActive, "Voter account is too new to vote")
	case errors.Is(err, reputation.ErrInvalidWeightClass):
		writeDomainError(w, r, ErrCodeInvalidWeightClass, "Unknown weight class")
	case errors.Is(err, reputation.ErrVoteNotFound):
		writeDomainError(w, r, ErrCodeNotFound, "No vote exists for this voter and target")
	case errors.Is(err, owner.ErrOwnerNotFound):
		writeDomainError(w, r, ErrCodeNotFound, "Voter or target owner not found")
	default:
		slog.ErrorContext(r.Context(), "vote mutation failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
	}
}
