package reputation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nearlist/nearlist/internal/owner"
	"github.com/nearlist/nearlist/internal/stats"
)

// DefaultVoteCooldown is how old a voter account must be before its votes
// count. Fresh accounts are the cheapest way to farm reputation.
const DefaultVoteCooldown = 7 * 24 * time.Hour

// DefaultMaxRetries bounds the backoff retry loop around transient store
// failures on the mutation path.
const DefaultMaxRetries = 3

// LedgerConfig configures the reputation ledger.
type LedgerConfig struct {
	// Cooldown is the minimum voter account age. Zero means DefaultVoteCooldown.
	Cooldown time.Duration
	// MaxRetries bounds retries of transient store errors. Zero means
	// DefaultMaxRetries.
	MaxRetries uint64
	// Logger for ledger activity.
	Logger *slog.Logger
	// Metrics for ledger operations (optional).
	Metrics *Metrics
	// Stats for cumulative mutation accounting (optional).
	Stats *stats.MutationStats
}

// Ledger records weighted votes and keeps the per-owner reputation aggregate
// consistent with them. Every mutation recomputes the target's score inside
// the store's atomic unit, so readers never observe a vote without its score
// update.
type Ledger struct {
	store  Store
	owners owner.Repository
	levels *LevelTable
	cache  *Cache
	config LedgerConfig

	// now is swappable in tests.
	now func() time.Time
}

// NewLedger creates a reputation ledger. cache may be nil to disable the
// read-through summary cache.
func NewLedger(store Store, owners owner.Repository, levels *LevelTable, cache *Cache, config LedgerConfig) *Ledger {
	if levels == nil {
		levels = DefaultLevelTable()
	}
	if config.Cooldown == 0 {
		config.Cooldown = DefaultVoteCooldown
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Ledger{
		store:  store,
		owners: owners,
		levels: levels,
		cache:  cache,
		config: config,
		now:    time.Now,
	}
}

// LevelTable exposes the ledger's level mapping for read paths.
func (l *Ledger) LevelTable() *LevelTable {
	return l.levels
}

// CastVote validates and records a vote. Validation order: self-vote, then
// cooldown, then the atomic upsert-and-recompute. Validation failures are
// returned as typed errors and never mutate state.
func (l *Ledger) CastVote(ctx context.Context, voterID, targetID string, weight WeightClass) (Summary, error) {
	if !weight.Valid() {
		l.reject(RejectReasonInvalidWeight)
		return Summary{}, ErrInvalidWeightClass
	}
	if voterID == targetID {
		l.reject(RejectReasonSelfVote)
		return Summary{}, ErrSelfVote
	}

	voter, err := l.owners.GetByID(ctx, voterID)
	if err != nil {
		return Summary{}, fmt.Errorf("load voter %s: %w", voterID, err)
	}
	if l.now().Sub(voter.AccountCreatedAt) < l.config.Cooldown {
		l.reject(RejectReasonCooldown)
		return Summary{}, ErrCooldownActive
	}

	start := l.now()
	var result MutationResult
	err = l.withRetry(ctx, func() error {
		var opErr error
		result, opErr = l.store.Upsert(ctx, Vote{
			VoterID:  voterID,
			TargetID: targetID,
			Weight:   weight,
		})
		return opErr
	})
	if err != nil {
		return Summary{}, err
	}
	l.observeMutation(start)

	outcome := "updated"
	if result.Inserted {
		outcome = "inserted"
		if l.config.Stats != nil {
			l.config.Stats.RecordInsert()
		}
	} else if l.config.Stats != nil {
		l.config.Stats.RecordUpdate()
	}
	if l.config.Metrics != nil {
		l.config.Metrics.IncVotesCast(outcome)
	}

	l.invalidate(ctx, targetID)

	l.config.Logger.DebugContext(ctx, "vote cast",
		"voter_id", voterID,
		"target_id", targetID,
		"weight_class", weight.String(),
		"outcome", outcome,
		"score", result.Score,
		"level", result.Level)

	return Summary{Score: result.Score, Level: result.Level}, nil
}

// RevokeVote removes a voter's vote for a target and recomputes the target's
// score in the same atomic unit. Returns ErrVoteNotFound when no vote exists.
func (l *Ledger) RevokeVote(ctx context.Context, voterID, targetID string) (Summary, error) {
	start := l.now()
	var result MutationResult
	err := l.withRetry(ctx, func() error {
		var opErr error
		result, opErr = l.store.Delete(ctx, voterID, targetID)
		return opErr
	})
	if err != nil {
		return Summary{}, err
	}
	l.observeMutation(start)

	if l.config.Metrics != nil {
		l.config.Metrics.IncVotesRevoked()
	}
	if l.config.Stats != nil {
		l.config.Stats.RecordRevoke()
	}

	l.invalidate(ctx, targetID)

	l.config.Logger.DebugContext(ctx, "vote revoked",
		"voter_id", voterID,
		"target_id", targetID,
		"score", result.Score,
		"level", result.Level)

	return Summary{Score: result.Score, Level: result.Level}, nil
}

// Reputation returns the owner's current score and level. The level is
// derived from the score on every read so it can never drift from the
// threshold table. Reads may be slightly stale relative to an in-flight vote
// write; that staleness is bounded and accepted.
func (l *Ledger) Reputation(ctx context.Context, ownerID string) (Summary, error) {
	if cached, err := l.cache.Get(ctx, ownerID); err == nil && cached != nil {
		if l.config.Metrics != nil {
			l.config.Metrics.IncCacheHits()
		}
		return *cached, nil
	}
	if l.config.Metrics != nil {
		l.config.Metrics.IncCacheMisses()
	}

	o, err := l.owners.GetByID(ctx, ownerID)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Score: o.ReputationScore,
		Level: l.levels.LevelFor(o.ReputationScore),
	}

	if err := l.cache.Set(ctx, ownerID, summary); err != nil {
		l.config.Logger.WarnContext(ctx, "failed to cache reputation summary",
			"owner_id", ownerID, "error", err)
	}

	return summary, nil
}

// withRetry runs op, retrying transient store errors with bounded
// exponential backoff. Non-transient errors abort immediately.
func (l *Ledger) withRetry(ctx context.Context, op func() error) error {
	policy := backoff.WithMaxRetries(
		backoff.WithContext(backoff.NewExponentialBackOff(), ctx),
		l.config.MaxRetries,
	)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			l.config.Logger.WarnContext(ctx, "transient store error, retrying", "error", err)
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}

func (l *Ledger) reject(reason string) {
	if l.config.Metrics != nil {
		l.config.Metrics.IncVotesRejected(reason)
	}
}

func (l *Ledger) observeMutation(start time.Time) {
	if l.config.Metrics != nil {
		l.config.Metrics.ObserveMutationDuration(l.now().Sub(start).Seconds())
	}
}

func (l *Ledger) invalidate(ctx context.Context, ownerID string) {
	if err := l.cache.Invalidate(ctx, ownerID); err != nil {
		l.config.Logger.WarnContext(ctx, "failed to invalidate reputation cache",
			"owner_id", ownerID, "error", err)
	}
}
