// Package search implements radius-bounded proximity search over active
// listings. The search path is read-only: it never mutates listings, scores,
// or counters.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/nearlist/nearlist/internal/gazetteer"
	"github.com/nearlist/nearlist/internal/geo"
	"github.com/nearlist/nearlist/internal/listing"
	"github.com/nearlist/nearlist/internal/owner"
	"github.com/nearlist/nearlist/internal/ranking"
)

// DefaultMaxRadiusKm caps the search radius when no override is configured.
const DefaultMaxRadiusKm = 500.0

// DefaultPageSize is used when a request omits PageSize.
const DefaultPageSize = 20

// MaxPageSize bounds the page size a caller may request.
const MaxPageSize = 100

// ErrInvalidRadius is returned when the requested radius is non-positive or
// exceeds the configured maximum.
var ErrInvalidRadius = errors.New("invalid radius: must be positive and within the configured maximum")

// ErrPageOutOfRange is returned for non-positive page numbers or page sizes
// outside [1, MaxPageSize]. A page past the last result is not an error; it
// yields an empty page.
var ErrPageOutOfRange = errors.New("page out of range")

// ErrMissingOrigin is returned when a request carries neither coordinates nor
// a location name.
var ErrMissingOrigin = errors.New("missing origin: provide coordinates or a location name")

// ErrInvalidSort is returned for an unrecognized sort mode.
var ErrInvalidSort = errors.New("invalid sort: must be distance or ranked")

// Sort modes accepted by Request.Sort.
const (
	// SortDistance orders results by distance ascending, newest first on
	// exact ties. This is the default.
	SortDistance = "distance"
	// SortRanked applies the composite ranking: tier, then distance, then
	// owner level, then verified status, then recency.
	SortRanked = "ranked"
)

// Filters narrows search results on non-geographic attributes. Zero values
// mean "no constraint".
type Filters struct {
	Category     string `json:"category,omitempty"`
	CountryCode  string `json:"country_code,omitempty"`
	VerifiedOnly bool   `json:"verified_only,omitempty"`
}

// Request is a proximity search query. Origin takes precedence over
// OriginName when both are set; OriginName is resolved through the gazetteer.
type Request struct {
	Origin     *geo.Coordinates `json:"origin,omitempty"`
	OriginName string           `json:"origin_name,omitempty"`
	RadiusKm   float64          `json:"radius_km"`
	Filters    Filters          `json:"filters"`
	// Sort selects the result ordering; empty means SortDistance.
	Sort     string `json:"sort,omitempty"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

// Result is one listing within the search radius.
type Result struct {
	Listing    listing.Listing `json:"listing"`
	DistanceKm float64         `json:"distance_km"`
	// Geohash is the coarse cell of the listing, usable for client-side
	// clustering of dense result sets.
	Geohash string `json:"geohash"`
	// OwnerLevel is populated only for ranked searches.
	OwnerLevel int `json:"owner_level,omitempty"`
}

// Response is one page of search results. TotalMatches counts every listing
// within the radius after filtering, not just the returned page.
type Response struct {
	Results      []Result        `json:"results"`
	Origin       geo.Coordinates `json:"origin"`
	Page         int             `json:"page"`
	PageSize     int             `json:"page_size"`
	TotalMatches int             `json:"total_matches"`
}

// OwnerLevels supplies owner reputation levels for ranked ordering.
type OwnerLevels interface {
	GetByID(ctx context.Context, id string) (*owner.Owner, error)
}

// ServiceConfig configures the search service.
type ServiceConfig struct {
	// MaxRadiusKm caps the accepted radius. Zero means DefaultMaxRadiusKm.
	MaxRadiusKm float64
	// Owners provides reputation levels for SortRanked. When nil, ranked
	// searches treat every owner as level 0.
	Owners OwnerLevels
	// Logger for search activity.
	Logger *slog.Logger
	// Metrics for search operations (optional).
	Metrics *Metrics
}

// Service performs proximity searches against the listing repository,
// resolving textual origins through the gazetteer.
type Service struct {
	listings listing.Repository
	resolver gazetteer.Resolver
	config   ServiceConfig
}

// NewService creates a search service.
func NewService(listings listing.Repository, resolver gazetteer.Resolver, config ServiceConfig) *Service {
	if config.MaxRadiusKm == 0 {
		config.MaxRadiusKm = DefaultMaxRadiusKm
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Service{
		listings: listings,
		resolver: resolver,
		config:   config,
	}
}

// Search executes a radius-bounded proximity search. Results are ordered per
// Request.Sort, distance ascending by default, and paginated after sorting so
// page boundaries are stable across requests.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.PageSize == 0 {
		req.PageSize = DefaultPageSize
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.Page < 1 || req.PageSize < 1 || req.PageSize > MaxPageSize {
		s.reject("page_out_of_range")
		return nil, ErrPageOutOfRange
	}
	if req.RadiusKm <= 0 || req.RadiusKm > s.config.MaxRadiusKm {
		s.reject("invalid_radius")
		return nil, ErrInvalidRadius
	}
	if req.Sort == "" {
		req.Sort = SortDistance
	}
	if req.Sort != SortDistance && req.Sort != SortRanked {
		s.reject("invalid_sort")
		return nil, ErrInvalidSort
	}

	origin, err := s.resolveOrigin(ctx, req)
	if err != nil {
		return nil, err
	}

	listings, err := s.listings.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}

	matches := make([]Result, 0, len(listings))
	for i, l := range listings {
		// Long scans stay responsive to caller cancellation.
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if !s.matchesFilters(l, req.Filters) {
			continue
		}
		if l.Coordinates == nil {
			s.config.Logger.DebugContext(ctx, "skipping listing without coordinates",
				"listing_id", l.ID,
				"location_name", l.LocationName)
			continue
		}
		d := geo.Distance(origin, *l.Coordinates)
		if d > req.RadiusKm {
			continue
		}
		matches = append(matches, Result{
			Listing:    *l,
			DistanceKm: d,
			Geohash:    geo.CoarseGeohash(*l.Coordinates),
		})
	}

	if req.Sort == SortRanked {
		s.annotateOwnerLevels(ctx, matches)
		matches = rankResults(matches)
	} else {
		sort.SliceStable(matches, func(i, j int) bool {
			if matches[i].DistanceKm != matches[j].DistanceKm {
				return matches[i].DistanceKm < matches[j].DistanceKm
			}
			return matches[i].Listing.CreatedAt.After(matches[j].Listing.CreatedAt)
		})
	}

	total := len(matches)
	page := paginate(matches, req.Page, req.PageSize)

	if s.config.Metrics != nil {
		s.config.Metrics.ObserveSearch(time.Since(start).Seconds(), total)
	}
	s.config.Logger.DebugContext(ctx, "search completed",
		"radius_km", req.RadiusKm,
		"total_matches", total,
		"page", req.Page,
		"returned", len(page))

	return &Response{
		Results:      page,
		Origin:       origin,
		Page:         req.Page,
		PageSize:     req.PageSize,
		TotalMatches: total,
	}, nil
}

// resolveOrigin yields the search origin, preferring explicit coordinates
// over a gazetteer lookup.
func (s *Service) resolveOrigin(ctx context.Context, req Request) (geo.Coordinates, error) {
	if req.Origin != nil {
		if err := req.Origin.Validate(); err != nil {
			return geo.Coordinates{}, err
		}
		return *req.Origin, nil
	}
	if req.OriginName == "" {
		return geo.Coordinates{}, ErrMissingOrigin
	}

	origin, err := s.resolver.Resolve(ctx, req.OriginName)
	if err != nil {
		if errors.Is(err, gazetteer.ErrLocationUnresolved) {
			s.reject("location_unresolved")
		}
		return geo.Coordinates{}, err
	}
	return origin, nil
}

// rankResults applies the composite ordering. The ranking package is the
// single ordering authority; results are adapted to candidates once, sorted,
// and reassembled in sorted order.
func rankResults(matches []Result) []Result {
	candidates := make([]ranking.Candidate, len(matches))
	byID := make(map[string]Result, len(matches))
	for i, m := range matches {
		candidates[i] = ranking.Candidate{
			Listing:    m.Listing,
			DistanceKm: m.DistanceKm,
			OwnerLevel: m.OwnerLevel,
		}
		byID[m.Listing.ID] = m
	}

	ranking.Rank(candidates)

	ordered := make([]Result, len(candidates))
	for i, c := range candidates {
		ordered[i] = byID[c.Listing.ID]
	}
	return ordered
}

// annotateOwnerLevels fills Result.OwnerLevel from the owner store. A level
// that cannot be loaded stays 0; the failure is scoped to that listing.
func (s *Service) annotateOwnerLevels(ctx context.Context, matches []Result) {
	if s.config.Owners == nil {
		return
	}
	levels := make(map[string]int)
	for i := range matches {
		ownerID := matches[i].Listing.OwnerID
		level, seen := levels[ownerID]
		if !seen {
			o, err := s.config.Owners.GetByID(ctx, ownerID)
			if err != nil {
				s.config.Logger.DebugContext(ctx, "owner level unavailable, ranking as level 0",
					"owner_id", ownerID,
					"error", err)
			} else {
				level = o.Level
			}
			levels[ownerID] = level
		}
		matches[i].OwnerLevel = level
	}
}

func (s *Service) matchesFilters(l *listing.Listing, f Filters) bool {
	if f.Category != "" && l.Category != f.Category {
		return false
	}
	if f.CountryCode != "" && l.CountryCode != f.CountryCode {
		return false
	}
	if f.VerifiedOnly && !l.Verified {
		return false
	}
	return true
}

func (s *Service) reject(reason string) {
	if s.config.Metrics != nil {
		s.config.Metrics.IncRejected(reason)
	}
}

// paginate slices one page out of the sorted results. Pages past the end
// return an empty, non-nil slice.
func paginate(results []Result, page, pageSize int) []Result {
	start := (page - 1) * pageSize
	if start >= len(results) {
		return []Result{}
	}
	end := start + pageSize
	if end > len(results) {
		end = len(results)
	}
	return results[start:end]
}
