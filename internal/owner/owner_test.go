package owner

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInMemoryRepository_GetByID(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Put(&Owner{ID: "alice", BonusScore: 100})

	o, err := repo.GetByID(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if o.BonusScore != 100 {
		t.Errorf("BonusScore = %d, want 100", o.BonusScore)
	}

	// Returned owner is a copy; mutating it must not affect the store.
	o.BonusScore = 999
	again, err := repo.GetByID(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if again.BonusScore != 100 {
		t.Errorf("stored BonusScore = %d, want 100", again.BonusScore)
	}

	if _, err := repo.GetByID(context.Background(), "nobody"); !errors.Is(err, ErrOwnerNotFound) {
		t.Errorf("GetByID(missing) error = %v, want ErrOwnerNotFound", err)
	}
}

func TestInMemoryRepository_Upsert(t *testing.T) {
	repo := NewInMemoryRepository()
	created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := repo.Upsert(context.Background(), &Owner{ID: "alice", AccountCreatedAt: created}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.SaveReputation(context.Background(), "alice", 70, 0); err != nil {
		t.Fatalf("SaveReputation() error = %v", err)
	}

	// A second upsert updates profile fields but keeps the cached aggregate.
	if err := repo.Upsert(context.Background(), &Owner{ID: "alice", BonusScore: 25, AccountCreatedAt: created}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	o, err := repo.GetByID(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if o.BonusScore != 25 {
		t.Errorf("BonusScore = %d, want 25", o.BonusScore)
	}
	if o.ReputationScore != 70 {
		t.Errorf("ReputationScore = %d, want 70 (preserved across upsert)", o.ReputationScore)
	}
}

func TestInMemoryRepository_SaveReputation(t *testing.T) {
	repo := NewInMemoryRepository()
	repo.Put(&Owner{ID: "alice"})

	if err := repo.SaveReputation(context.Background(), "alice", 580, 1); err != nil {
		t.Fatalf("SaveReputation() error = %v", err)
	}
	o, err := repo.GetByID(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if o.ReputationScore != 580 || o.Level != 1 {
		t.Errorf("got score=%d level=%d, want 580/1", o.ReputationScore, o.Level)
	}

	if err := repo.SaveReputation(context.Background(), "nobody", 1, 0); !errors.Is(err, ErrOwnerNotFound) {
		t.Errorf("SaveReputation(missing) error = %v, want ErrOwnerNotFound", err)
	}
}
