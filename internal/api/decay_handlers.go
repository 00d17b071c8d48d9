package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/nearlist/nearlist/internal/decay"
	"github.com/nearlist/nearlist/internal/engine"
	"github.com/nearlist/nearlist/internal/middleware"
)

// DecayHandlers holds dependencies for administrative decay endpoints.
type DecayHandlers struct {
	engine *engine.Engine
}

// NewDecayHandlers creates a new DecayHandlers instance.
func NewDecayHandlers(eng *engine.Engine) *DecayHandlers {
	return &DecayHandlers{engine: eng}
}

// TriggerDecay handles POST /admin/decay. It forces an immediate window
// reset; the decay-log watermark still prevents a double reset within the
// same calendar week.
func (h *DecayHandlers) TriggerDecay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeDomainError(w, r, ErrCodeBadRequest, "Method not allowed")
		return
	}

	entry, err := h.engine.TriggerDecay(r.Context())
	if err != nil {
		if errors.Is(err, decay.ErrAlreadyRanThisWindow) {
			writeDomainError(w, r, ErrCodeDecayAlreadyRan, "Decay reset already ran in the current window")
			return
		}
		slog.ErrorContext(r.Context(), "manual decay trigger failed", "error", err)
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
		WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, entry)
}
