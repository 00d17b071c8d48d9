// Package ranking orders search candidates into a single deterministic
// ranking. The comparator is lexicographic rather than score-based: each
// criterion only breaks ties left by the ones before it, so paid tier can
// never be outbid by proximity and proximity never by reputation.
package ranking

import (
	"sort"

	"github.com/nearlist/nearlist/internal/listing"
)

// Candidate is one listing entering the ranking, annotated with the signals
// the comparator consumes. DistanceKm is measured from the search origin;
// OwnerLevel is the owner's current reputation level.
type Candidate struct {
	Listing    listing.Listing `json:"listing"`
	DistanceKm float64         `json:"distance_km"`
	OwnerLevel int             `json:"owner_level"`
}

// Less reports whether a ranks strictly before b.
//
// Criteria, in order: tier descending, distance ascending, owner level
// descending, verified before unverified, newest first. Candidates equal on
// every criterion compare false both ways; the stable sort in Rank keeps
// their input order.
func Less(a, b *Candidate) bool {
	if a.Listing.Tier != b.Listing.Tier {
		return a.Listing.Tier > b.Listing.Tier
	}
	if a.DistanceKm != b.DistanceKm {
		return a.DistanceKm < b.DistanceKm
	}
	if a.OwnerLevel != b.OwnerLevel {
		return a.OwnerLevel > b.OwnerLevel
	}
	if a.Listing.Verified != b.Listing.Verified {
		return a.Listing.Verified
	}
	return a.Listing.CreatedAt.After(b.Listing.CreatedAt)
}

// Rank sorts candidates in place into final display order. The sort is
// stable, so identical inputs always produce identical output orders.
func Rank(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return Less(&candidates[i], &candidates[j])
	})
}
