package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nearlist/nearlist/internal/engine"
	"github.com/nearlist/nearlist/internal/listing"
	"github.com/nearlist/nearlist/internal/middleware"
)

// ListingHandlers holds dependencies for listing HTTP handlers.
type ListingHandlers struct {
	engine *engine.Engine
}

// NewListingHandlers creates a new ListingHandlers instance.
func NewListingHandlers(eng *engine.Engine) *ListingHandlers {
	return &ListingHandlers{engine: eng}
}

// HandleListings dispatches /listings/{id} and /listings/{id}/view.
func (h *ListingHandlers) HandleListings(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/listings/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.getListing(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "view":
		h.recordView(w, r, parts[0])
	default:
		writeDomainError(w, r, ErrCodeNotFound, "The requested resource was not found")
	}
}

// getListing handles GET /listings/{id}.
func (h *ListingHandlers) getListing(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeDomainError(w, r, ErrCodeBadRequest, "Method not allowed")
		return
	}

	l, err := h.engine.GetListing(r.Context(), id)
	if err != nil {
		h.writeListingError(w, r, err, id)
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, l)
}

// recordView handles POST /listings/{id}/view. View recording is
// best-effort from the client's perspective but the counter update itself
// is atomic.
func (h *ListingHandlers) recordView(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeDomainError(w, r, ErrCodeBadRequest, "Method not allowed")
		return
	}

	if err := h.engine.RecordView(r.Context(), id); err != nil {
		h.writeListingError(w, r, err, id)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ListingHandlers) writeListingError(w http.ResponseWriter, r *http.Request, err error, id string) {
	if errors.Is(err, listing.ErrListingNotFound) {
		writeDomainError(w, r, ErrCodeNotFound, "Listing not found")
		return
	}
	slog.ErrorContext(r.Context(), "listing operation failed", "error", err, "listing_id", id)
	ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
	WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
}
