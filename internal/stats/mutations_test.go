package stats

import (
	"sync"
	"testing"
)

func TestMutationStatsCounts(t *testing.T) {
	s := NewMutationStats()

	s.RecordInsert()
	s.RecordInsert()
	s.RecordUpdate()
	s.RecordRevoke()

	if got := s.Inserted(); got != 2 {
		t.Errorf("Inserted() = %d, want 2", got)
	}
	if got := s.Updated(); got != 1 {
		t.Errorf("Updated() = %d, want 1", got)
	}
	if got := s.Revoked(); got != 1 {
		t.Errorf("Revoked() = %d, want 1", got)
	}
	if got := s.Total(); got != 4 {
		t.Errorf("Total() = %d, want 4", got)
	}
}

func TestMutationStatsReset(t *testing.T) {
	s := NewMutationStats()
	s.RecordInsert()
	s.RecordRevoke()

	s.Reset()

	if got := s.Total(); got != 0 {
		t.Errorf("Total() after reset = %d, want 0", got)
	}
}

func TestMutationStatsString(t *testing.T) {
	s := NewMutationStats()
	s.RecordInsert()

	want := "inserted=1 updated=0 revoked=0 total=1"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestMutationStatsConcurrent(t *testing.T) {
	s := NewMutationStats()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordInsert()
			s.RecordUpdate()
			s.RecordRevoke()
		}()
	}
	wg.Wait()

	if got := s.Total(); got != 150 {
		t.Errorf("Total() = %d, want 150", got)
	}
}
