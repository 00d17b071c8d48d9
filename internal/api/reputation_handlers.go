package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nearlist/nearlist/internal/engine"
	"github.com/nearlist/nearlist/internal/middleware"
	"github.com/nearlist/nearlist/internal/owner"
	"github.com/nearlist/nearlist/internal/reputation"
	"github.com/nearlist/nearlist/internal/validate"
)

// ReputationHandlers holds dependencies for reputation HTTP handlers.
type ReputationHandlers struct {
	engine *engine.Engine
}

// NewReputationHandlers creates a new ReputationHandlers instance.
func NewReputationHandlers(eng *engine.Engine) *ReputationHandlers {
	return &ReputationHandlers{engine: eng}
}

// reputationResponse is the body of GET /reputation/{ownerID}.
type reputationResponse struct {
	OwnerID    string             `json:"owner_id"`
	Reputation reputation.Summary `json:"reputation"`
}

// GetReputation handles GET /reputation/{ownerID}.
func (h *ReputationHandlers) GetReputation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDomainError(w, r, ErrCodeBadRequest, "Method not allowed")
		return
	}

	raw := strings.Trim(strings.TrimPrefix(r.URL.Path, "/reputation/"), "/")
	ownerID, err := validate.OwnerID(raw)
	if err != nil || strings.Contains(raw, "/") {
		writeDomainError(w, r, ErrCodeValidation, "Owner ID is required")
		return
	}

	summary, err := h.engine.GetReputation(r.Context(), ownerID)
	if err != nil {
		if errors.Is(err, owner.ErrOwnerNotFound) {
			writeDomainError(w, r, ErrCodeNotFound, "Owner not found")
			return
		}
		slog.ErrorContext(r.Context(), "reputation read failed", "error", err, "owner_id", ownerID)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, reputationResponse{
		OwnerID:    ownerID,
		Reputation: summary,
	})
}
