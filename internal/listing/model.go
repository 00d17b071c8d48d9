// Package listing provides the listing model and repositories for the
// discovery engine. The engine reads listing attributes and owns only the
// windowed view counter; listing CRUD and moderation live elsewhere.
package listing

import (
	"errors"
	"time"

	"github.com/nearlist/nearlist/internal/geo"
)

// Tier is a listing's paid priority class, independent of owner reputation.
// Higher tiers are pinned above lower tiers in ranking.
type Tier int

// Tier values in ascending priority order.
const (
	TierStandard Tier = iota
	TierPlus
	TierVIP
	TierElite
)

// ErrInvalidTier is returned when parsing an unknown tier name.
var ErrInvalidTier = errors.New("invalid tier: must be standard, plus, vip, or elite")

// tierNames maps tiers to their wire representation.
var tierNames = map[Tier]string{
	TierStandard: "standard",
	TierPlus:     "plus",
	TierVIP:      "vip",
	TierElite:    "elite",
}

// String returns the tier's wire name.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "standard"
}

// ParseTier parses a tier wire name. Unknown names are rejected rather than
// silently mapped to the lowest tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "standard":
		return TierStandard, nil
	case "plus":
		return TierPlus, nil
	case "vip":
		return TierVIP, nil
	case "elite":
		return TierElite, nil
	default:
		return TierStandard, ErrInvalidTier
	}
}

// Status is a listing's lifecycle state.
type Status string

// Listing statuses.
const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Listing is a service-provider listing as seen by the discovery engine.
// Coordinates is nil until the location name has been resolved; such listings
// are excluded from radius search but still reachable via non-geo paths.
type Listing struct {
	ID              string           `json:"id"`
	OwnerID         string           `json:"owner_id"`
	LocationName    string           `json:"location_name"`
	Coordinates     *geo.Coordinates `json:"coordinates,omitempty"`
	Category        string           `json:"category"`
	CountryCode     string           `json:"country_code"`
	Tier            Tier             `json:"tier"`
	Verified        bool             `json:"verified"`
	CreatedAt       time.Time        `json:"created_at"`
	WindowViewCount int64            `json:"window_view_count"`
	TotalViewCount  int64            `json:"total_view_count"`
	Status          Status           `json:"status"`
}

// Active reports whether the listing participates in search.
func (l *Listing) Active() bool {
	return l.Status == StatusActive
}
