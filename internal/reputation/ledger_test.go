package reputation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nearlist/nearlist/internal/owner"
)

// newTestLedger builds a ledger over in-memory stores with two established
// owners and one freshly created account.
func newTestLedger(t *testing.T) (*Ledger, *owner.InMemoryRepository, *InMemoryStore) {
	t.Helper()

	owners := owner.NewInMemoryRepository()
	old := time.Now().Add(-30 * 24 * time.Hour)
	owners.Put(&owner.Owner{ID: "alice", AccountCreatedAt: old})
	owners.Put(&owner.Owner{ID: "bob", AccountCreatedAt: old})
	owners.Put(&owner.Owner{ID: "carol", AccountCreatedAt: old, BonusScore: 100})
	owners.Put(&owner.Owner{ID: "newbie", AccountCreatedAt: time.Now().Add(-time.Hour)})

	store := NewInMemoryStore(owners, nil)
	ledger := NewLedger(store, owners, nil, nil, LedgerConfig{})
	return ledger, owners, store
}

func TestCastVoteSelfVoteRejected(t *testing.T) {
	ledger, owners, store := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.CastVote(ctx, "alice", "alice", WeightTier1)
	if !errors.Is(err, ErrSelfVote) {
		t.Fatalf("CastVote() error = %v, want ErrSelfVote", err)
	}

	// Rejection must not mutate the ledger or the cached score.
	if votes, _ := store.VotesFor(ctx, "alice"); len(votes) != 0 {
		t.Errorf("self-vote created %d ledger rows", len(votes))
	}
	o, _ := owners.GetByID(ctx, "alice")
	if o.ReputationScore != 0 {
		t.Errorf("self-vote changed score to %d", o.ReputationScore)
	}
}

func TestUpsertMissingTargetLeavesNoRow(t *testing.T) {
	_, owners, store := newTestLedger(t)
	ctx := context.Background()

	_, err := store.Upsert(ctx, Vote{VoterID: "alice", TargetID: "ghost", Weight: WeightTier1})
	if !errors.Is(err, owner.ErrOwnerNotFound) {
		t.Fatalf("Upsert() error = %v, want ErrOwnerNotFound", err)
	}

	// The failed mutation must not persist a vote row: a reader would see a
	// vote without its score update.
	if votes, _ := store.VotesFor(ctx, "ghost"); len(votes) != 0 {
		t.Fatalf("failed upsert left %d vote rows behind", len(votes))
	}

	// Once the target exists, only votes cast from here on count.
	owners.Put(&owner.Owner{ID: "ghost", AccountCreatedAt: time.Now().Add(-30 * 24 * time.Hour)})
	res, err := store.Upsert(ctx, Vote{VoterID: "alice", TargetID: "ghost", Weight: WeightTier4})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if res.Score != WeightTier4.Points() {
		t.Errorf("score = %d, want %d (earlier failed vote must not count)", res.Score, WeightTier4.Points())
	}
}

func TestCastVoteCooldown(t *testing.T) {
	ledger, _, store := newTestLedger(t)
	ctx := context.Background()

	_, err := ledger.CastVote(ctx, "newbie", "alice", WeightTier2)
	if !errors.Is(err, ErrCooldownActive) {
		t.Fatalf("CastVote() error = %v, want ErrCooldownActive", err)
	}
	if votes, _ := store.VotesFor(ctx, "alice"); len(votes) != 0 {
		t.Errorf("cooldown-rejected vote created %d ledger rows", len(votes))
	}
}

func TestCastVoteInvalidWeight(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.CastVote(context.Background(), "alice", "bob", WeightClass(42))
	if !errors.Is(err, ErrInvalidWeightClass) {
		t.Fatalf("CastVote() error = %v, want ErrInvalidWeightClass", err)
	}
}

func TestCastVoteRecomputesScore(t *testing.T) {
	ledger, owners, _ := newTestLedger(t)
	ctx := context.Background()

	summary, err := ledger.CastVote(ctx, "alice", "bob", WeightTier1)
	if err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}
	if summary.Score != 50 {
		t.Errorf("score = %d, want 50", summary.Score)
	}

	// The persisted owner aggregate matches the returned summary.
	o, _ := owners.GetByID(ctx, "bob")
	if o.ReputationScore != 50 {
		t.Errorf("persisted score = %d, want 50", o.ReputationScore)
	}
}

func TestCastVoteOverwrite(t *testing.T) {
	ledger, _, store := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.CastVote(ctx, "alice", "bob", WeightTier1); err != nil {
		t.Fatalf("first cast error = %v", err)
	}
	first, err := store.GetVote(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("GetVote() error = %v", err)
	}

	summary, err := ledger.CastVote(ctx, "alice", "bob", WeightTier4)
	if err != nil {
		t.Fatalf("second cast error = %v", err)
	}

	// Exactly one row, carrying the second cast's weight class.
	votes, _ := store.VotesFor(ctx, "bob")
	if len(votes) != 1 {
		t.Fatalf("vote rows = %d, want 1", len(votes))
	}
	if votes[0].Weight != WeightTier4 {
		t.Errorf("weight = %v, want WeightTier4", votes[0].Weight)
	}
	if summary.Score != 5 {
		t.Errorf("score after overwrite = %d, want 5", summary.Score)
	}

	// Overwrite must not refresh CreatedAt.
	second, _ := store.GetVote(ctx, "alice", "bob")
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("CreatedAt changed on re-cast: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
}

func TestBonusScoreIncluded(t *testing.T) {
	ledger, _, _ := newTestLedger(t)
	ctx := context.Background()

	summary, err := ledger.CastVote(ctx, "alice", "carol", WeightTier2)
	if err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}
	if summary.Score != 120 {
		t.Errorf("score = %d, want 20 + 100 bonus", summary.Score)
	}
}

func TestRevokeVote(t *testing.T) {
	ledger, owners, store := newTestLedger(t)
	ctx := context.Background()

	if _, err := ledger.CastVote(ctx, "alice", "bob", WeightTier1); err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}
	if _, err := ledger.CastVote(ctx, "carol", "bob", WeightTier3); err != nil {
		t.Fatalf("CastVote() error = %v", err)
	}

	summary, err := ledger.RevokeVote(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("RevokeVote() error = %v", err)
	}
	if summary.Score != 10 {
		t.Errorf("score after revoke = %d, want 10", summary.Score)
	}

	o, _ := owners.GetByID(ctx, "bob")
	if o.ReputationScore != 10 {
		t.Errorf("persisted score = %d, want 10", o.ReputationScore)
	}
	if votes, _ := store.VotesFor(ctx, "bob"); len(votes) != 1 {
		t.Errorf("remaining votes = %d, want 1", len(votes))
	}
}

func TestRevokeMissingVote(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.RevokeVote(context.Background(), "alice", "bob")
	if !errors.Is(err, ErrVoteNotFound) {
		t.Fatalf("RevokeVote() error = %v, want ErrVoteNotFound", err)
	}
}

func TestRecomputeDeterministic(t *testing.T) {
	// Casting the same set of votes in two different orders must yield the
	// same score.
	cast := func(order []struct {
		voter  string
		weight WeightClass
	}) int64 {
		owners := owner.NewInMemoryRepository()
		old := time.Now().Add(-30 * 24 * time.Hour)
		owners.Put(&owner.Owner{ID: "target", AccountCreatedAt: old, BonusScore: 7})
		for _, c := range order {
			owners.Put(&owner.Owner{ID: c.voter, AccountCreatedAt: old})
		}
		store := NewInMemoryStore(owners, nil)
		ledger := NewLedger(store, owners, nil, nil, LedgerConfig{})

		var last Summary
		for _, c := range order {
			var err error
			last, err = ledger.CastVote(context.Background(), c.voter, "target", c.weight)
			if err != nil {
				t.Fatalf("CastVote(%s) error = %v", c.voter, err)
			}
		}
		return last.Score
	}

	votes := []struct {
		voter  string
		weight WeightClass
	}{
		{"v1", WeightTier1},
		{"v2", WeightTier2},
		{"v3", WeightTier4},
	}
	reversed := []struct {
		voter  string
		weight WeightClass
	}{votes[2], votes[1], votes[0]}

	a := cast(votes)
	b := cast(reversed)
	if a != b {
		t.Errorf("recompute not order-independent: %d vs %d", a, b)
	}
	if a != 50+20+5+7 {
		t.Errorf("score = %d, want 82", a)
	}
}

func TestReputationLevelDerivedOnRead(t *testing.T) {
	ledger, owners, _ := newTestLedger(t)
	ctx := context.Background()

	// Seed a score directly; the read path must derive the level from the
	// threshold table rather than trust a stored value.
	owners.Put(&owner.Owner{
		ID:               "dave",
		ReputationScore:  3000,
		Level:            99, // deliberately wrong
		AccountCreatedAt: time.Now().Add(-365 * 24 * time.Hour),
	})

	summary, err := ledger.Reputation(ctx, "dave")
	if err != nil {
		t.Fatalf("Reputation() error = %v", err)
	}
	if summary.Score != 3000 {
		t.Errorf("score = %d, want 3000", summary.Score)
	}
	if want := DefaultLevelTable().LevelFor(3000); summary.Level != want {
		t.Errorf("level = %d, want %d", summary.Level, want)
	}
}

func TestReputationUnknownOwner(t *testing.T) {
	ledger, _, _ := newTestLedger(t)

	_, err := ledger.Reputation(context.Background(), "ghost")
	if !errors.Is(err, owner.ErrOwnerNotFound) {
		t.Fatalf("Reputation() error = %v, want ErrOwnerNotFound", err)
	}
}

func TestConcurrentVotesSameTarget(t *testing.T) {
	owners := owner.NewInMemoryRepository()
	old := time.Now().Add(-30 * 24 * time.Hour)
	owners.Put(&owner.Owner{ID: "target", AccountCreatedAt: old})

	const voters = 20
	voterIDs := make([]string, voters)
	for i := range voterIDs {
		voterIDs[i] = "voter-" + string(rune('a'+i))
		owners.Put(&owner.Owner{ID: voterIDs[i], AccountCreatedAt: old})
	}

	store := NewInMemoryStore(owners, nil)
	ledger := NewLedger(store, owners, nil, nil, LedgerConfig{})

	var wg sync.WaitGroup
	for _, voter := range voterIDs {
		wg.Add(1)
		go func(v string) {
			defer wg.Done()
			if _, err := ledger.CastVote(context.Background(), v, "target", WeightTier3); err != nil {
				t.Errorf("CastVote(%s) error = %v", v, err)
			}
		}(voter)
	}
	wg.Wait()

	// No lost updates: every vote is present and the aggregate matches.
	o, _ := owners.GetByID(context.Background(), "target")
	if want := int64(voters * 10); o.ReputationScore != want {
		t.Errorf("score = %d, want %d", o.ReputationScore, want)
	}
	if votes, _ := store.VotesFor(context.Background(), "target"); len(votes) != voters {
		t.Errorf("vote rows = %d, want %d", len(votes), voters)
	}
}

// flakyStore fails a fixed number of times with a transient error before
// delegating to the wrapped store.
type flakyStore struct {
	Store
	mu        sync.Mutex
	remaining int
}

func (f *flakyStore) Upsert(ctx context.Context, vote Vote) (MutationResult, error) {
	f.mu.Lock()
	if f.remaining > 0 {
		f.remaining--
		f.mu.Unlock()
		return MutationResult{}, &TransientError{Err: errors.New("connection reset")}
	}
	f.mu.Unlock()
	return f.Store.Upsert(ctx, vote)
}

func TestCastVoteRetriesTransientErrors(t *testing.T) {
	owners := owner.NewInMemoryRepository()
	old := time.Now().Add(-30 * 24 * time.Hour)
	owners.Put(&owner.Owner{ID: "alice", AccountCreatedAt: old})
	owners.Put(&owner.Owner{ID: "bob", AccountCreatedAt: old})

	flaky := &flakyStore{Store: NewInMemoryStore(owners, nil), remaining: 2}
	ledger := NewLedger(flaky, owners, nil, nil, LedgerConfig{MaxRetries: 3})

	summary, err := ledger.CastVote(context.Background(), "alice", "bob", WeightTier2)
	if err != nil {
		t.Fatalf("CastVote() error = %v, want retry success", err)
	}
	if summary.Score != 20 {
		t.Errorf("score = %d, want 20", summary.Score)
	}
}

func TestCastVoteExhaustsRetries(t *testing.T) {
	owners := owner.NewInMemoryRepository()
	old := time.Now().Add(-30 * 24 * time.Hour)
	owners.Put(&owner.Owner{ID: "alice", AccountCreatedAt: old})
	owners.Put(&owner.Owner{ID: "bob", AccountCreatedAt: old})

	flaky := &flakyStore{Store: NewInMemoryStore(owners, nil), remaining: 100}
	ledger := NewLedger(flaky, owners, nil, nil, LedgerConfig{MaxRetries: 2})

	_, err := ledger.CastVote(context.Background(), "alice", "bob", WeightTier2)
	if err == nil {
		t.Fatal("CastVote() succeeded, want exhausted retries to surface")
	}
	if !IsTransient(err) {
		t.Errorf("surfaced error = %v, want transient", err)
	}
}
