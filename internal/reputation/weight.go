// Package reputation provides the weighted vote ledger and the score-to-level
// mapping. Votes are the source of truth; the score cached on the owner is
// recomputed synchronously inside the same atomic unit as every mutation.
package reputation

import "errors"

// WeightClass is the engagement tier of a vote. It is a closed enum with a
// single authoritative points table; callers choose the tier, never the
// point value.
type WeightClass int

// Weight classes in descending point value.
const (
	WeightTier1 WeightClass = iota + 1
	WeightTier2
	WeightTier3
	WeightTier4
)

// ErrInvalidWeightClass is returned when parsing an unknown weight class.
var ErrInvalidWeightClass = errors.New("invalid weight class: must be tier1, tier2, tier3, or tier4")

// pointValues maps each weight class to its fixed point value. Higher
// engagement tiers are worth more.
var pointValues = map[WeightClass]int64{
	WeightTier1: 50,
	WeightTier2: 20,
	WeightTier3: 10,
	WeightTier4: 5,
}

// weightNames maps weight classes to their wire representation.
var weightNames = map[WeightClass]string{
	WeightTier1: "tier1",
	WeightTier2: "tier2",
	WeightTier3: "tier3",
	WeightTier4: "tier4",
}

// Points returns the fixed point value of the weight class. Unknown values
// contribute nothing, but ParseWeightClass rejects them before they can reach
// the ledger.
func (w WeightClass) Points() int64 {
	return pointValues[w]
}

// String returns the weight class wire name.
func (w WeightClass) String() string {
	if name, ok := weightNames[w]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether the weight class is a known enum value.
func (w WeightClass) Valid() bool {
	_, ok := pointValues[w]
	return ok
}

// ParseWeightClass parses a weight class wire name, rejecting unknowns so an
// invalid category can never silently contribute zero points.
func ParseWeightClass(s string) (WeightClass, error) {
	switch s {
	case "tier1":
		return WeightTier1, nil
	case "tier2":
		return WeightTier2, nil
	case "tier3":
		return WeightTier3, nil
	case "tier4":
		return WeightTier4, nil
	default:
		return 0, ErrInvalidWeightClass
	}
}
