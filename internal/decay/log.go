package decay

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/nearlist/nearlist/internal/tracing"
)

// LogEntry records one completed window reset. Entries are append-only and
// serve both as audit trail and as the watermark preventing a second reset
// inside the same window.
type LogEntry struct {
	ID                   string    `json:"id"`
	ResetAt              time.Time `json:"reset_at"`
	AffectedListingCount int       `json:"affected_listing_count"`
}

// LogStore persists decay log entries. Implementations never update or
// delete existing entries.
type LogStore interface {
	// Append stores a new log entry.
	Append(ctx context.Context, entry LogEntry) error

	// Latest returns the most recent entry by ResetAt, or nil when the log
	// is empty.
	Latest(ctx context.Context) (*LogEntry, error)
}

// InMemoryLogStore is an in-memory LogStore for testing and development.
type InMemoryLogStore struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// NewInMemoryLogStore creates an empty in-memory decay log.
func NewInMemoryLogStore() *InMemoryLogStore {
	return &InMemoryLogStore{}
}

// Append stores a new log entry.
func (s *InMemoryLogStore) Append(_ context.Context, entry LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Latest returns the most recent entry by ResetAt.
func (s *InMemoryLogStore) Latest(_ context.Context) (*LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *LogEntry
	for i := range s.entries {
		if latest == nil || s.entries[i].ResetAt.After(latest.ResetAt) {
			latest = &s.entries[i]
		}
	}
	if latest == nil {
		return nil, nil
	}
	c := *latest
	return &c, nil
}

// Len returns the number of logged resets.
func (s *InMemoryLogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// PostgresLogStore implements LogStore backed by the decay_log table.
type PostgresLogStore struct {
	db *sql.DB
}

// NewPostgresLogStore creates a new PostgresLogStore.
func NewPostgresLogStore(db *sql.DB) *PostgresLogStore {
	return &PostgresLogStore{db: db}
}

// Append stores a new log entry.
func (s *PostgresLogStore) Append(ctx context.Context, entry LogEntry) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "decay_log", tracing.DBOperationInsert)
	var err error
	defer func() { endSpan(err) }()

	const query = `
		INSERT INTO decay_log (id, reset_at, affected_listing_count)
		VALUES ($1, $2, $3)
	`
	_, err = s.db.ExecContext(ctx, query, entry.ID, entry.ResetAt, entry.AffectedListingCount)
	if err != nil {
		return fmt.Errorf("append decay log entry: %w", err)
	}
	return nil
}

// Latest returns the most recent entry by ResetAt.
func (s *PostgresLogStore) Latest(ctx context.Context) (*LogEntry, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "decay_log", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	const query = `
		SELECT id, reset_at, affected_listing_count
		FROM decay_log
		ORDER BY reset_at DESC
		LIMIT 1
	`

	var entry LogEntry
	err = s.db.QueryRowContext(ctx, query).Scan(&entry.ID, &entry.ResetAt, &entry.AffectedListingCount)
	if err == sql.ErrNoRows {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest decay log entry: %w", err)
	}
	return &entry, nil
}
