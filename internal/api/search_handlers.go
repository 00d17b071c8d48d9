package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/nearlist/nearlist/internal/engine"
	"github.com/nearlist/nearlist/internal/gazetteer"
	"github.com/nearlist/nearlist/internal/geo"
	"github.com/nearlist/nearlist/internal/middleware"
	"github.com/nearlist/nearlist/internal/search"
	"github.com/nearlist/nearlist/internal/validate"
)

// SearchHandlers holds dependencies for search HTTP handlers.
type SearchHandlers struct {
	engine *engine.Engine
}

// NewSearchHandlers creates a new SearchHandlers instance.
func NewSearchHandlers(eng *engine.Engine) *SearchHandlers {
	return &SearchHandlers{engine: eng}
}

// Search handles GET /search.
//
// Query parameters:
//
//	lat, lng      explicit origin coordinates (both required together)
//	origin        place name resolved through the gazetteer
//	radius_km     search radius, required
//	category      optional category filter
//	country       optional ISO country code filter
//	verified_only optional, "true" restricts to verified listings
//	sort          optional, "distance" (default) or "ranked"
//	page          1-based page number, default 1
//	page_size     results per page, default 20, max 100
//
// Explicit coordinates take precedence over the origin name when both are
// present.
func (h *SearchHandlers) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeDomainError(w, r, ErrCodeBadRequest, "Method not allowed")
		return
	}

	query := r.URL.Query()

	var req search.Request
	if origin := strings.TrimSpace(query.Get("origin")); origin != "" {
		name, err := validate.LocationName(origin)
		if err != nil {
			writeDomainError(w, r, ErrCodeValidation, "Invalid origin place name")
			return
		}
		req.OriginName = name
	}

	latStr, lngStr := query.Get("lat"), query.Get("lng")
	if latStr != "" || lngStr != "" {
		if latStr == "" || lngStr == "" {
			writeDomainError(w, r, ErrCodeValidation, "lat and lng must be provided together")
			return
		}
		lat, err := strconv.ParseFloat(latStr, 64)
		if err != nil {
			writeDomainError(w, r, ErrCodeValidation, "Invalid lat")
			return
		}
		lng, err := strconv.ParseFloat(lngStr, 64)
		if err != nil {
			writeDomainError(w, r, ErrCodeValidation, "Invalid lng")
			return
		}
		if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			writeDomainError(w, r, ErrCodeValidation, "Coordinates out of range")
			return
		}
		req.Origin = &geo.Coordinates{Lat: lat, Lng: lng}
	}

	radiusStr := query.Get("radius_km")
	if radiusStr == "" {
		writeDomainError(w, r, ErrCodeValidation, "radius_km is required")
		return
	}
	radius, err := strconv.ParseFloat(radiusStr, 64)
	if err != nil {
		writeDomainError(w, r, ErrCodeValidation, "Invalid radius_km")
		return
	}
	req.RadiusKm = radius

	// An explicit page=0 must be rejected, not confused with "unset" and
	// silently defaulted.
	if pageStr := query.Get("page"); pageStr != "" {
		page, err := strconv.Atoi(pageStr)
		if err != nil || page < 1 {
			writeDomainError(w, r, ErrCodePageOutOfRange, "page must be a positive integer")
			return
		}
		req.Page = page
	}
	if sizeStr := query.Get("page_size"); sizeStr != "" {
		size, err := strconv.Atoi(sizeStr)
		if err != nil || size < 1 {
			writeDomainError(w, r, ErrCodePageOutOfRange, "page_size must be a positive integer")
			return
		}
		req.PageSize = size
	}

	req.Sort = strings.TrimSpace(query.Get("sort"))

	req.Filters = search.Filters{
		VerifiedOnly: query.Get("verified_only") == "true",
	}
	if raw := query.Get("category"); strings.TrimSpace(raw) != "" {
		category, err := validate.Category(raw)
		if err != nil {
			writeDomainError(w, r, ErrCodeValidation, "Invalid category")
			return
		}
		req.Filters.Category = category
	}
	if raw := query.Get("country"); strings.TrimSpace(raw) != "" {
		code, err := validate.CountryCode(raw)
		if err != nil {
			writeDomainError(w, r, ErrCodeValidation, "Invalid country code")
			return
		}
		req.Filters.CountryCode = code
	}

	resp, err := h.engine.SearchListings(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrMissingOrigin):
			writeDomainError(w, r, ErrCodeValidation, "Either lat/lng or origin must be provided")
		case errors.Is(err, search.ErrInvalidRadius):
			writeDomainError(w, r, ErrCodeInvalidRadius, "radius_km must be positive and within the configured cap")
		case errors.Is(err, search.ErrInvalidSort):
			writeDomainError(w, r, ErrCodeValidation, "sort must be distance or ranked")
		case errors.Is(err, search.ErrPageOutOfRange):
			writeDomainError(w, r, ErrCodePageOutOfRange, "page and page_size must be positive; page_size at most 100")
		case errors.Is(err, gazetteer.ErrLocationUnresolved):
			writeDomainError(w, r, ErrCodeLocationUnresolved, "Origin place name not found")
		default:
			slog.ErrorContext(r.Context(), "search failed", "error", err)
			ctx := middleware.SetErrorCode(r.Context(), ErrCodeInternal)
			WriteError(w, ctx, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
		}
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, resp)
}
