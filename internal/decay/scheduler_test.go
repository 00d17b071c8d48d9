package decay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nearlist/nearlist/internal/listing"
)

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestScheduler(t *testing.T, clock Clock, listings ...*listing.Listing) (*Scheduler, *listing.InMemoryRepository, *InMemoryLogStore) {
	t.Helper()

	repo := listing.NewInMemoryRepository()
	for _, l := range listings {
		repo.Put(l)
	}
	log := NewInMemoryLogStore()
	sched := NewScheduler(repo, log, SchedulerConfig{Clock: clock})
	return sched, repo, log
}

func viewedListing(id string, windowViews, totalViews int64) *listing.Listing {
	return &listing.Listing{
		ID:              id,
		OwnerID:         "owner-" + id,
		Status:          listing.StatusActive,
		WindowViewCount: windowViews,
		TotalViewCount:  totalViews,
	}
}

func TestWindowStart(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "monday maps to itself",
			in:   time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monday afternoon maps to monday midnight",
			in:   time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC),
			want: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday maps to previous monday",
			in:   time.Date(2026, 9, 6, 23, 59, 59, 0, time.UTC),
			want: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "wednesday mid-week",
			in:   time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "non-utc input converted",
			in:   time.Date(2026, 9, 1, 0, 30, 0, 0, time.FixedZone("UTC+2", 2*3600)),
			want: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := windowStart(tt.in); !got.Equal(tt.want) {
				t.Errorf("windowStart(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResetWindow(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC))
	sched, repo, log := newTestScheduler(t, clock,
		viewedListing("a", 42, 1000),
		viewedListing("b", 7, 50),
	)

	entry, err := sched.ResetWindow(context.Background())
	if err != nil {
		t.Fatalf("ResetWindow() error = %v", err)
	}
	if entry.AffectedListingCount != 2 {
		t.Errorf("AffectedListingCount = %d, want 2", entry.AffectedListingCount)
	}
	if !entry.ResetAt.Equal(clock.Now()) {
		t.Errorf("ResetAt = %v, want %v", entry.ResetAt, clock.Now())
	}
	if entry.ID == "" {
		t.Error("log entry missing ID")
	}

	// Windowed counters zeroed, lifetime counters untouched.
	a, _ := repo.GetByID(context.Background(), "a")
	if a.WindowViewCount != 0 {
		t.Errorf("WindowViewCount = %d, want 0", a.WindowViewCount)
	}
	if a.TotalViewCount != 1000 {
		t.Errorf("TotalViewCount = %d, want 1000", a.TotalViewCount)
	}

	if log.Len() != 1 {
		t.Errorf("log entries = %d, want 1", log.Len())
	}
}

func TestResetWindowWatermark(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC))
	sched, repo, log := newTestScheduler(t, clock, viewedListing("a", 10, 10))

	if _, err := sched.ResetWindow(context.Background()); err != nil {
		t.Fatalf("first ResetWindow() error = %v", err)
	}

	// Views accumulate again inside the same window.
	if err := repo.RecordView(context.Background(), "a"); err != nil {
		t.Fatalf("RecordView() error = %v", err)
	}

	// Second run in the same window is a guarded no-op.
	clock.Advance(24 * time.Hour)
	_, err := sched.ResetWindow(context.Background())
	if !errors.Is(err, ErrAlreadyRanThisWindow) {
		t.Fatalf("second ResetWindow() error = %v, want ErrAlreadyRanThisWindow", err)
	}
	a, _ := repo.GetByID(context.Background(), "a")
	if a.WindowViewCount != 1 {
		t.Errorf("WindowViewCount = %d, want 1 (no-op must not zero)", a.WindowViewCount)
	}
	if log.Len() != 1 {
		t.Errorf("log entries = %d, want 1 after no-op", log.Len())
	}

	// Crossing into the next window arms the reset again.
	clock.Advance(7 * 24 * time.Hour)
	entry, err := sched.ResetWindow(context.Background())
	if err != nil {
		t.Fatalf("next-window ResetWindow() error = %v", err)
	}
	if entry.AffectedListingCount != 1 {
		t.Errorf("AffectedListingCount = %d, want 1", entry.AffectedListingCount)
	}
	a, _ = repo.GetByID(context.Background(), "a")
	if a.WindowViewCount != 0 {
		t.Errorf("WindowViewCount = %d, want 0 after next-window reset", a.WindowViewCount)
	}
	if log.Len() != 2 {
		t.Errorf("log entries = %d, want 2", log.Len())
	}
}

func TestResetWindowSkipsInactive(t *testing.T) {
	inactive := viewedListing("inactive", 99, 99)
	inactive.Status = listing.StatusInactive

	clock := newFakeClock(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC))
	sched, repo, _ := newTestScheduler(t, clock, viewedListing("active", 5, 5), inactive)

	entry, err := sched.ResetWindow(context.Background())
	if err != nil {
		t.Fatalf("ResetWindow() error = %v", err)
	}
	if entry.AffectedListingCount != 1 {
		t.Errorf("AffectedListingCount = %d, want 1", entry.AffectedListingCount)
	}
	got, _ := repo.GetByID(context.Background(), "inactive")
	if got.WindowViewCount != 99 {
		t.Errorf("inactive WindowViewCount = %d, want untouched 99", got.WindowViewCount)
	}
}

func TestResetWindowConcurrentTriggers(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC))
	sched, _, log := newTestScheduler(t, clock, viewedListing("a", 10, 10))

	const triggers = 10
	var wg sync.WaitGroup
	var succeeded, skipped int
	var mu sync.Mutex

	for i := 0; i < triggers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sched.ResetWindow(context.Background())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrAlreadyRanThisWindow):
				skipped++
			default:
				t.Errorf("ResetWindow() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("succeeded = %d, want exactly 1", succeeded)
	}
	if skipped != triggers-1 {
		t.Errorf("skipped = %d, want %d", skipped, triggers-1)
	}
	if log.Len() != 1 {
		t.Errorf("log entries = %d, want 1", log.Len())
	}
}

func TestSchedulerStartStop(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC))
	repo := listing.NewInMemoryRepository()
	repo.Put(viewedListing("a", 3, 3))
	log := NewInMemoryLogStore()
	sched := NewScheduler(repo, log, SchedulerConfig{
		Clock:         clock,
		CheckInterval: 10 * time.Millisecond,
	})

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !sched.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}

	// The runner fires a cycle on start; wait for the reset to land.
	deadline := time.After(2 * time.Second)
	for log.Len() == 0 {
		select {
		case <-deadline:
			t.Fatal("runner never performed the initial reset")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sched.Stop()
	if sched.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}

	// Stop is idempotent.
	sched.Stop()

	if log.Len() != 1 {
		t.Errorf("log entries = %d, want 1 (watermark holds across cycles)", log.Len())
	}
}

// failingLogStore fails Append to exercise the retry-on-next-cycle path.
type failingLogStore struct {
	*InMemoryLogStore
	failAppend bool
}

func (s *failingLogStore) Append(ctx context.Context, entry LogEntry) error {
	if s.failAppend {
		return errors.New("log store unavailable")
	}
	return s.InMemoryLogStore.Append(ctx, entry)
}

func TestResetWindowLogAppendFailure(t *testing.T) {
	clock := newFakeClock(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC))
	repo := listing.NewInMemoryRepository()
	repo.Put(viewedListing("a", 10, 10))
	log := &failingLogStore{InMemoryLogStore: NewInMemoryLogStore(), failAppend: true}
	sched := NewScheduler(repo, log, SchedulerConfig{Clock: clock})

	if _, err := sched.ResetWindow(context.Background()); err == nil {
		t.Fatal("ResetWindow() succeeded despite log append failure")
	}

	// The counters were zeroed but no watermark landed; the retry re-runs
	// the idempotent reset and logs it.
	log.failAppend = false
	entry, err := sched.ResetWindow(context.Background())
	if err != nil {
		t.Fatalf("retry ResetWindow() error = %v", err)
	}
	if entry.AffectedListingCount != 1 {
		t.Errorf("AffectedListingCount = %d, want 1", entry.AffectedListingCount)
	}
	if log.Len() != 1 {
		t.Errorf("log entries = %d, want 1", log.Len())
	}
}
