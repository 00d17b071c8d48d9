// Package stats provides utilities for tracking ledger mutation statistics.
package stats

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// MutationStats tracks cumulative counts for vote ledger mutations.
// All operations are thread-safe using atomic counters.
type MutationStats struct {
	inserted int64 // New vote rows created
	updated  int64 // Existing vote rows overwritten
	revoked  int64 // Vote rows deleted
}

// NewMutationStats creates a new MutationStats instance.
func NewMutationStats() *MutationStats {
	return &MutationStats{}
}

// RecordInsert increments the inserted counter.
func (s *MutationStats) RecordInsert() {
	atomic.AddInt64(&s.inserted, 1)
}

// RecordUpdate increments the updated counter.
func (s *MutationStats) RecordUpdate() {
	atomic.AddInt64(&s.updated, 1)
}

// RecordRevoke increments the revoked counter.
func (s *MutationStats) RecordRevoke() {
	atomic.AddInt64(&s.revoked, 1)
}

// Inserted returns the total number of new votes.
func (s *MutationStats) Inserted() int64 {
	return atomic.LoadInt64(&s.inserted)
}

// Updated returns the total number of overwritten votes.
func (s *MutationStats) Updated() int64 {
	return atomic.LoadInt64(&s.updated)
}

// Revoked returns the total number of revoked votes.
func (s *MutationStats) Revoked() int64 {
	return atomic.LoadInt64(&s.revoked)
}

// Total returns the total number of mutations.
func (s *MutationStats) Total() int64 {
	return s.Inserted() + s.Updated() + s.Revoked()
}

// Reset resets all counters to zero.
func (s *MutationStats) Reset() {
	atomic.StoreInt64(&s.inserted, 0)
	atomic.StoreInt64(&s.updated, 0)
	atomic.StoreInt64(&s.revoked, 0)
}

// String returns a human-readable summary of the statistics.
func (s *MutationStats) String() string {
	return fmt.Sprintf("inserted=%d updated=%d revoked=%d total=%d",
		s.Inserted(), s.Updated(), s.Revoked(), s.Total())
}

// LogSummary logs a summary of mutation statistics at INFO level.
// Useful for periodic reporting and shutdown.
func (s *MutationStats) LogSummary(logger *slog.Logger) {
	logger.Info("ledger mutation statistics",
		"inserted", s.Inserted(),
		"updated", s.Updated(),
		"revoked", s.Revoked(),
		"total", s.Total(),
	)
}
