package decay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nearlist/nearlist/internal/jobs"
	"github.com/nearlist/nearlist/internal/listing"
)

// ErrAlreadyRanThisWindow is returned when the latest decay log entry falls
// inside the current window. Callers treat it as a no-op, not a failure.
var ErrAlreadyRanThisWindow = errors.New("decay already ran this window")

// DefaultCheckInterval is how often the runner checks whether the current
// window still needs a reset. The check is cheap; the watermark makes extra
// checks harmless.
const DefaultCheckInterval = 1 * time.Hour

// DefaultCycleTimeout bounds a single reset cycle.
const DefaultCycleTimeout = 2 * time.Minute

// SchedulerConfig configures the decay scheduler.
type SchedulerConfig struct {
	// CheckInterval is the duration between runner checks. Zero means
	// DefaultCheckInterval.
	CheckInterval time.Duration
	// CycleTimeout bounds each reset cycle. Zero means DefaultCycleTimeout.
	CycleTimeout time.Duration
	// Clock supplies the current time. Nil means SystemClock.
	Clock Clock
	// Logger for scheduler activity.
	Logger *slog.Logger
	// Metrics for reset tracking (optional).
	Metrics *Metrics
	// JobMetrics for centralized background job tracking (optional).
	JobMetrics *jobs.Metrics
}

// Scheduler resets windowed view counters once per decay window. The decay
// log's latest entry acts as the watermark: a reset only proceeds when the
// watermark predates the current window, so concurrent or repeated triggers
// collapse into one effective run.
type Scheduler struct {
	listings listing.Repository
	log      LogStore
	config   SchedulerConfig

	// resetMu serializes ResetWindow within this process. Cross-process
	// duplicates are caught by the watermark check.
	resetMu sync.Mutex

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a decay scheduler.
func NewScheduler(listings listing.Repository, log LogStore, config SchedulerConfig) *Scheduler {
	if config.CheckInterval == 0 {
		config.CheckInterval = DefaultCheckInterval
	}
	if config.CycleTimeout == 0 {
		config.CycleTimeout = DefaultCycleTimeout
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Scheduler{
		listings: listings,
		log:      log,
		config:   config,
	}
}

// ResetWindow resets every active listing's windowed view counter and appends
// one decay log entry, unless a reset already ran in the current window, in
// which case it returns ErrAlreadyRanThisWindow and changes nothing.
func (s *Scheduler) ResetWindow(ctx context.Context) (*LogEntry, error) {
	s.resetMu.Lock()
	defer s.resetMu.Unlock()

	now := s.config.Clock.Now()
	window := windowStart(now)

	latest, err := s.log.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("load decay watermark: %w", err)
	}
	if latest != nil && !latest.ResetAt.Before(window) {
		s.config.Logger.InfoContext(ctx, "decay reset skipped, watermark inside current window",
			"window_start", window,
			"last_reset_at", latest.ResetAt)
		if s.config.Metrics != nil {
			s.config.Metrics.IncSkipped()
		}
		return nil, ErrAlreadyRanThisWindow
	}

	affected, err := s.listings.ResetWindowViewCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("reset window view counts: %w", err)
	}

	entry := LogEntry{
		ID:                   uuid.NewString(),
		ResetAt:              now,
		AffectedListingCount: affected,
	}
	if err := s.log.Append(ctx, entry); err != nil {
		// Counters are already zeroed. The next cycle re-runs the reset,
		// which is idempotent, and then retries the append.
		return nil, fmt.Errorf("append decay log entry: %w", err)
	}

	if s.config.Metrics != nil {
		s.config.Metrics.ObserveReset(affected, float64(now.Unix()))
	}

	s.config.Logger.InfoContext(ctx, "decay reset completed",
		"window_start", window,
		"affected_listings", affected)

	return &entry, nil
}

// Start begins the periodic decay runner.
// Returns immediately; the runner runs in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
	return nil
}

// Stop signals the runner to stop and waits for it to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the runner is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// run is the main loop for the decay runner. One cycle executes immediately
// on start so a restart never misses an overdue window.
func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.config.Logger.Info("decay runner stopping due to context cancellation")
			return
		case <-s.stopCh:
			s.config.Logger.Info("decay runner stopping due to stop signal")
			return
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

// cycle runs one bounded reset attempt and reports job metrics.
func (s *Scheduler) cycle(parentCtx context.Context) {
	ctx, cancel := context.WithTimeout(parentCtx, s.config.CycleTimeout)
	defer cancel()

	start := time.Now()
	_, err := s.ResetWindow(ctx)
	duration := time.Since(start).Seconds()

	switch {
	case err == nil:
		if s.config.JobMetrics != nil {
			s.config.JobMetrics.IncJobsTotal(jobs.JobTypeDecayReset, jobs.StatusSuccess)
			s.config.JobMetrics.ObserveJobDuration(jobs.JobTypeDecayReset, duration)
		}
	case errors.Is(err, ErrAlreadyRanThisWindow):
		// Expected on every check inside an already-reset window.
	default:
		s.config.Logger.Error("decay reset cycle failed", "error", err)
		if s.config.JobMetrics != nil {
			s.config.JobMetrics.IncJobsTotal(jobs.JobTypeDecayReset, jobs.StatusFailure)
			s.config.JobMetrics.ObserveJobDuration(jobs.JobTypeDecayReset, duration)
			s.config.JobMetrics.IncJobErrors(jobs.JobTypeDecayReset, "reset_error")
		}
	}
}
