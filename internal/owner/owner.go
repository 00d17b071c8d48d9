// Package owner provides the owner model and repositories. Reputation score
// and level are derived caches maintained by the reputation ledger; the vote
// rows remain the source of truth.
package owner

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOwnerNotFound is returned when an owner does not exist.
var ErrOwnerNotFound = errors.New("owner not found")

// Owner is a listing owner with a cached reputation aggregate.
type Owner struct {
	ID               string    `json:"id"`
	ReputationScore  int64     `json:"reputation_score"`
	BonusScore       int64     `json:"bonus_score"`
	Level            int       `json:"level"`
	AccountCreatedAt time.Time `json:"account_created_at"`
}

// Repository defines owner data operations used by the engine.
type Repository interface {
	// GetByID retrieves an owner by ID.
	GetByID(ctx context.Context, id string) (*Owner, error)

	// Upsert creates the owner or replaces its profile fields. The cached
	// reputation aggregate is left to SaveReputation.
	Upsert(ctx context.Context, o *Owner) error

	// SaveReputation persists the recomputed score and level for an owner.
	SaveReputation(ctx context.Context, ownerID string, score int64, level int) error
}

// InMemoryRepository is an in-memory Repository for testing and development.
type InMemoryRepository struct {
	mu     sync.RWMutex
	owners map[string]*Owner
}

// NewInMemoryRepository creates an empty in-memory owner repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		owners: make(map[string]*Owner),
	}
}

// Put stores or replaces an owner.
func (r *InMemoryRepository) Put(o *Owner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *o
	r.owners[o.ID] = &c
}

// Upsert creates the owner or replaces its profile fields, preserving any
// cached reputation aggregate on an existing row.
func (r *InMemoryRepository) Upsert(_ context.Context, o *Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *o
	if existing, ok := r.owners[o.ID]; ok {
		c.ReputationScore = existing.ReputationScore
		c.Level = existing.Level
	}
	r.owners[o.ID] = &c
	return nil
}

// GetByID retrieves an owner by ID.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Owner, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.owners[id]
	if !ok {
		return nil, ErrOwnerNotFound
	}
	c := *o
	return &c, nil
}

// SaveReputation persists the recomputed score and level for an owner.
func (r *InMemoryRepository) SaveReputation(_ context.Context, ownerID string, score int64, level int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.owners[ownerID]
	if !ok {
		return ErrOwnerNotFound
	}
	o.ReputationScore = score
	o.Level = level
	return nil
}
