package listing

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrListingNotFound is returned when a listing does not exist.
var ErrListingNotFound = errors.New("listing not found")

// Repository defines listing data operations used by the engine.
type Repository interface {
	// GetByID retrieves a listing by its ID.
	GetByID(ctx context.Context, id string) (*Listing, error)

	// ListActive returns all active listings.
	ListActive(ctx context.Context) ([]*Listing, error)

	// RecordView increments both the windowed and total view counters.
	RecordView(ctx context.Context, id string) error

	// ResetWindowViewCounts zeroes the windowed view counter on every active
	// listing and returns how many were affected. Setting to zero is
	// idempotent per listing, so a partial run is safe to retry.
	ResetWindowViewCounts(ctx context.Context) (int, error)
}

// InMemoryRepository is an in-memory Repository for testing and development.
type InMemoryRepository struct {
	mu       sync.RWMutex
	listings map[string]*Listing
}

// NewInMemoryRepository creates an empty in-memory listing repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		listings: make(map[string]*Listing),
	}
}

// Put stores or replaces a listing.
func (r *InMemoryRepository) Put(l *Listing) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listings[l.ID] = copyListing(l)
}

// GetByID retrieves a listing by its ID.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.listings[id]
	if !ok {
		return nil, ErrListingNotFound
	}
	return copyListing(l), nil
}

// ListActive returns all active listings ordered by ID for determinism.
func (r *InMemoryRepository) ListActive(_ context.Context) ([]*Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*Listing
	for _, l := range r.listings {
		if l.Active() {
			result = append(result, copyListing(l))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// RecordView increments both view counters.
func (r *InMemoryRepository) RecordView(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return ErrListingNotFound
	}
	l.WindowViewCount++
	l.TotalViewCount++
	return nil
}

// ResetWindowViewCounts zeroes the windowed counter on all active listings.
func (r *InMemoryRepository) ResetWindowViewCounts(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	affected := 0
	for _, l := range r.listings {
		if l.Active() {
			l.WindowViewCount = 0
			affected++
		}
	}
	return affected, nil
}

// copyListing returns a deep copy so callers cannot mutate stored state.
func copyListing(l *Listing) *Listing {
	c := *l
	if l.Coordinates != nil {
		coords := *l.Coordinates
		c.Coordinates = &coords
	}
	return &c
}
