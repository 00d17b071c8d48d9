package reputation

import (
	"fmt"
	"sort"
)

// DefaultLevelThresholds is the default ascending threshold table: nine
// levels from 500 to 150000 points. An owner below the first threshold is
// level 0.
var DefaultLevelThresholds = []int64{
	500, 1500, 3000, 6000, 12000, 25000, 50000, 100000, 150000,
}

// LevelTable maps cumulative scores to discrete levels over an ascending,
// strictly increasing threshold table.
type LevelTable struct {
	thresholds []int64
}

// NewLevelTable validates and builds a level table. Thresholds must be
// strictly increasing and positive.
func NewLevelTable(thresholds []int64) (*LevelTable, error) {
	if len(thresholds) == 0 {
		return nil, fmt.Errorf("level thresholds must not be empty")
	}
	for i, th := range thresholds {
		if th <= 0 {
			return nil, fmt.Errorf("level threshold %d must be positive (got %d)", i, th)
		}
		if i > 0 && th <= thresholds[i-1] {
			return nil, fmt.Errorf("level thresholds must be strictly increasing (index %d: %d <= %d)", i, th, thresholds[i-1])
		}
	}

	t := make([]int64, len(thresholds))
	copy(t, thresholds)
	return &LevelTable{thresholds: t}, nil
}

// DefaultLevelTable returns the table built from DefaultLevelThresholds.
func DefaultLevelTable() *LevelTable {
	table, err := NewLevelTable(DefaultLevelThresholds)
	if err != nil {
		// DefaultLevelThresholds is a compile-time constant table.
		panic(err)
	}
	return table
}

// LevelFor returns the highest level whose threshold is <= score, or 0 when
// the score is below the first threshold. The mapping is monotonic in score.
func (t *LevelTable) LevelFor(score int64) int {
	// First index with threshold > score; the level is that index.
	return sort.Search(len(t.thresholds), func(i int) bool {
		return t.thresholds[i] > score
	})
}

// MaxLevel returns the number of levels in the table.
func (t *LevelTable) MaxLevel() int {
	return len(t.thresholds)
}
