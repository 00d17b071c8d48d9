package reputation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nearlist/nearlist/internal/owner"
)

// MutationResult reports the outcome of a ledger mutation together with the
// reputation recomputed in the same atomic unit.
type MutationResult struct {
	// Inserted is true when a new vote row was created, false when an
	// existing row was overwritten (or, for Delete, removed).
	Inserted bool
	Score    int64
	Level    int
}

// Store persists votes and performs the atomic upsert-and-recompute unit.
// Implementations must guarantee that the vote mutation and the target's
// score recompute are atomic with respect to concurrent mutations on the
// same target; mutations on different targets may proceed in parallel.
type Store interface {
	// Upsert writes the vote for (voter, target). An existing row keeps its
	// CreatedAt and only the weight class is overwritten. The target's score
	// and level are recomputed and persisted in the same unit.
	Upsert(ctx context.Context, vote Vote) (MutationResult, error)

	// Delete removes the vote for (voter, target) and recomputes the target's
	// score in the same unit. Returns ErrVoteNotFound if no row exists.
	Delete(ctx context.Context, voterID, targetID string) (MutationResult, error)

	// GetVote returns the current vote for (voter, target), or ErrVoteNotFound.
	GetVote(ctx context.Context, voterID, targetID string) (*Vote, error)

	// VotesFor returns all current votes targeting an owner.
	VotesFor(ctx context.Context, targetID string) ([]Vote, error)
}

// InMemoryStore is an in-memory Store for testing and development. A
// per-target mutex makes the upsert-and-recompute unit atomic per target
// while leaving unrelated targets fully concurrent.
type InMemoryStore struct {
	owners *owner.InMemoryRepository
	levels *LevelTable

	mu    sync.Mutex
	votes map[string]map[string]*Vote // targetID -> voterID -> vote
	locks map[string]*sync.Mutex      // targetID -> mutation lock
}

// NewInMemoryStore creates an in-memory vote store bound to an in-memory
// owner repository.
func NewInMemoryStore(owners *owner.InMemoryRepository, levels *LevelTable) *InMemoryStore {
	if levels == nil {
		levels = DefaultLevelTable()
	}
	return &InMemoryStore{
		owners: owners,
		levels: levels,
		votes:  make(map[string]map[string]*Vote),
		locks:  make(map[string]*sync.Mutex),
	}
}

// targetLock returns the mutation lock for a target, creating it on first use.
func (s *InMemoryStore) targetLock(targetID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[targetID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[targetID] = lock
	}
	return lock
}

// Upsert writes the vote and recomputes the target's score atomically.
func (s *InMemoryStore) Upsert(ctx context.Context, vote Vote) (MutationResult, error) {
	lock := s.targetLock(vote.TargetID)
	lock.Lock()
	defer lock.Unlock()

	// Fail before writing: a missing target must not leave a vote row
	// behind without its score update.
	if _, err := s.owners.GetByID(ctx, vote.TargetID); err != nil {
		return MutationResult{}, fmt.Errorf("upsert target %s: %w", vote.TargetID, err)
	}

	s.mu.Lock()
	byVoter, ok := s.votes[vote.TargetID]
	if !ok {
		byVoter = make(map[string]*Vote)
		s.votes[vote.TargetID] = byVoter
	}

	inserted := false
	var prevWeight WeightClass
	if existing, ok := byVoter[vote.VoterID]; ok {
		// Overwrite semantics: new weight class, original CreatedAt.
		prevWeight = existing.Weight
		existing.Weight = vote.Weight
	} else {
		inserted = true
		stored := vote
		if stored.ID == "" {
			stored.ID = uuid.New().String()
		}
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = time.Now()
		}
		byVoter[vote.VoterID] = &stored
	}
	s.mu.Unlock()

	summary, err := s.recompute(ctx, vote.TargetID)
	if err != nil {
		// Roll the write back so the vote and its score update stay one unit.
		s.mu.Lock()
		if inserted {
			delete(byVoter, vote.VoterID)
		} else if existing, ok := byVoter[vote.VoterID]; ok {
			existing.Weight = prevWeight
		}
		s.mu.Unlock()
		return MutationResult{}, err
	}

	return MutationResult{Inserted: inserted, Score: summary.Score, Level: summary.Level}, nil
}

// Delete removes the vote and recomputes the target's score atomically.
func (s *InMemoryStore) Delete(ctx context.Context, voterID, targetID string) (MutationResult, error) {
	lock := s.targetLock(targetID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	byVoter, ok := s.votes[targetID]
	if !ok {
		s.mu.Unlock()
		return MutationResult{}, ErrVoteNotFound
	}
	removed, ok := byVoter[voterID]
	if !ok {
		s.mu.Unlock()
		return MutationResult{}, ErrVoteNotFound
	}
	delete(byVoter, voterID)
	s.mu.Unlock()

	summary, err := s.recompute(ctx, targetID)
	if err != nil {
		// Restore the row so the delete and its score update stay one unit.
		s.mu.Lock()
		byVoter[voterID] = removed
		s.mu.Unlock()
		return MutationResult{}, err
	}

	return MutationResult{Score: summary.Score, Level: summary.Level}, nil
}

// GetVote returns the current vote for (voter, target).
func (s *InMemoryStore) GetVote(_ context.Context, voterID, targetID string) (*Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if byVoter, ok := s.votes[targetID]; ok {
		if v, ok := byVoter[voterID]; ok {
			c := *v
			return &c, nil
		}
	}
	return nil, ErrVoteNotFound
}

// VotesFor returns all current votes targeting an owner, ordered by voter ID
// for determinism.
func (s *InMemoryStore) VotesFor(_ context.Context, targetID string) ([]Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Vote
	for _, v := range s.votes[targetID] {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].VoterID < result[j].VoterID })
	return result, nil
}

// recompute derives score = Σ points + bonus and persists it on the owner.
// Summation over a set of votes is order-independent, so the result is
// deterministic for a given ledger state.
func (s *InMemoryStore) recompute(ctx context.Context, targetID string) (Summary, error) {
	target, err := s.owners.GetByID(ctx, targetID)
	if err != nil {
		return Summary{}, fmt.Errorf("recompute target %s: %w", targetID, err)
	}

	var score int64
	s.mu.Lock()
	for _, v := range s.votes[targetID] {
		score += v.Weight.Points()
	}
	s.mu.Unlock()

	score += target.BonusScore
	level := s.levels.LevelFor(score)

	if err := s.owners.SaveReputation(ctx, targetID, score, level); err != nil {
		return Summary{}, fmt.Errorf("persist reputation for %s: %w", targetID, err)
	}

	return Summary{Score: score, Level: level}, nil
}
