// Package engine composes the discovery and ranking services behind a single
// facade. HTTP handlers and embedders talk to the Engine rather than to the
// individual packages, so the in-process contract stays in one place.
package engine

import (
	"context"

	"github.com/nearlist/nearlist/internal/decay"
	"github.com/nearlist/nearlist/internal/listing"
	"github.com/nearlist/nearlist/internal/reputation"
	"github.com/nearlist/nearlist/internal/search"
)

// Engine is the in-process API of the discovery engine.
type Engine struct {
	listings  listing.Repository
	search    *search.Service
	ledger    *reputation.Ledger
	scheduler *decay.Scheduler
}

// New creates an engine from its composed services.
func New(listings listing.Repository, searchSvc *search.Service, ledger *reputation.Ledger, scheduler *decay.Scheduler) *Engine {
	return &Engine{
		listings:  listings,
		search:    searchSvc,
		ledger:    ledger,
		scheduler: scheduler,
	}
}

// SearchListings runs a radius-bounded proximity search.
func (e *Engine) SearchListings(ctx context.Context, req search.Request) (*search.Response, error) {
	return e.search.Search(ctx, req)
}

// CastVote records or overwrites a vote and returns the target's recomputed
// reputation.
func (e *Engine) CastVote(ctx context.Context, voterID, targetID string, weight reputation.WeightClass) (reputation.Summary, error) {
	return e.ledger.CastVote(ctx, voterID, targetID, weight)
}

// RevokeVote removes a vote and returns the target's recomputed reputation.
func (e *Engine) RevokeVote(ctx context.Context, voterID, targetID string) (reputation.Summary, error) {
	return e.ledger.RevokeVote(ctx, voterID, targetID)
}

// GetReputation returns the current score and level of an owner.
func (e *Engine) GetReputation(ctx context.Context, ownerID string) (reputation.Summary, error) {
	return e.ledger.Reputation(ctx, ownerID)
}

// RecordView increments the view counters of a listing.
func (e *Engine) RecordView(ctx context.Context, listingID string) error {
	return e.listings.RecordView(ctx, listingID)
}

// GetListing retrieves a listing by ID.
func (e *Engine) GetListing(ctx context.Context, listingID string) (*listing.Listing, error) {
	return e.listings.GetByID(ctx, listingID)
}

// TriggerDecay forces an immediate decay window reset. The watermark still
// applies, so a second trigger inside the same window returns
// decay.ErrAlreadyRanThisWindow.
func (e *Engine) TriggerDecay(ctx context.Context) (*decay.LogEntry, error) {
	return e.scheduler.ResetWindow(ctx)
}
