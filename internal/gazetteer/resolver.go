package gazetteer

import (
	"context"
	"errors"
	"sync"

	"github.com/nearlist/nearlist/internal/geo"
)

// ErrLocationUnresolved is returned when a place name has no exact match in
// the gazetteer. Callers treat this as non-fatal: the listing is excluded from
// radius search but remains reachable through non-geo paths.
var ErrLocationUnresolved = errors.New("location name not found in gazetteer")

// Entry is a single gazetteer row. Entries are admin-maintained reference
// data and immutable from the engine's perspective.
type Entry struct {
	NormalizedName string          `json:"normalized_name"`
	DisplayName    string          `json:"display_name"`
	Coordinates    geo.Coordinates `json:"coordinates"`
	CountryCode    string          `json:"country_code"`
}

// Resolver resolves place names to coordinates.
type Resolver interface {
	// Resolve returns the coordinates for an exact normalized-name match,
	// or ErrLocationUnresolved on a miss.
	Resolve(ctx context.Context, name string) (geo.Coordinates, error)

	// Lookup returns the full entry for an exact normalized-name match.
	Lookup(ctx context.Context, name string) (*Entry, error)
}

// InMemoryGazetteer is an in-memory Resolver used for testing and development.
type InMemoryGazetteer struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewInMemoryGazetteer creates an empty in-memory gazetteer.
func NewInMemoryGazetteer() *InMemoryGazetteer {
	return &InMemoryGazetteer{
		entries: make(map[string]Entry),
	}
}

// Add inserts an entry, keyed by the normalized form of its display name.
// If NormalizedName is unset it is derived from DisplayName.
func (g *InMemoryGazetteer) Add(entry Entry) {
	if entry.NormalizedName == "" {
		entry.NormalizedName = Normalize(entry.DisplayName)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[entry.NormalizedName] = entry
}

// Resolve returns the coordinates for an exact normalized-name match.
func (g *InMemoryGazetteer) Resolve(ctx context.Context, name string) (geo.Coordinates, error) {
	entry, err := g.Lookup(ctx, name)
	if err != nil {
		return geo.Coordinates{}, err
	}
	return entry.Coordinates, nil
}

// Lookup returns the full entry for an exact normalized-name match.
func (g *InMemoryGazetteer) Lookup(_ context.Context, name string) (*Entry, error) {
	key := Normalize(name)
	if key == "" {
		return nil, ErrLocationUnresolved
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	entry, ok := g.entries[key]
	if !ok {
		return nil, ErrLocationUnresolved
	}
	// Return a copy to avoid external modification
	result := entry
	return &result, nil
}

// Len returns the number of entries (for testing).
func (g *InMemoryGazetteer) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entries)
}
