package listing

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/nearlist/nearlist/internal/geo"
	"github.com/nearlist/nearlist/internal/tracing"
)

// PostgresRepository implements Repository backed by the listings table.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

const listingColumns = `
	id, owner_id, location_name, lat, lng, category, country_code,
	tier, verified, created_at, window_view_count, total_view_count, status
`

// GetByID retrieves a listing by its ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Listing, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)

	l, scanErr := scanListing(row)
	if scanErr == sql.ErrNoRows {
		return nil, ErrListingNotFound
	}
	if scanErr != nil {
		err = fmt.Errorf("get listing: %w", scanErr)
		return nil, err
	}
	return l, nil
}

// ListActive returns all active listings.
func (r *PostgresRepository) ListActive(ctx context.Context) ([]*Listing, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	rows, queryErr := r.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE status = 'active' ORDER BY id`)
	if queryErr != nil {
		err = fmt.Errorf("list active listings: %w", queryErr)
		return nil, err
	}
	defer rows.Close()

	var result []*Listing
	for rows.Next() {
		l, scanErr := scanListing(rows)
		if scanErr != nil {
			err = fmt.Errorf("scan listing: %w", scanErr)
			return nil, err
		}
		result = append(result, l)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = fmt.Errorf("iterate listings: %w", rowsErr)
		return nil, err
	}
	return result, nil
}

// RecordView increments both view counters atomically.
func (r *PostgresRepository) RecordView(ctx context.Context, id string) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationUpdate)
	var err error
	defer func() { endSpan(err) }()

	result, execErr := r.db.ExecContext(ctx, `
		UPDATE listings
		SET window_view_count = window_view_count + 1,
		    total_view_count = total_view_count + 1
		WHERE id = $1`, id)
	if execErr != nil {
		err = fmt.Errorf("record view: %w", execErr)
		return err
	}

	affected, raErr := result.RowsAffected()
	if raErr != nil {
		err = fmt.Errorf("record view rows affected: %w", raErr)
		return err
	}
	if affected == 0 {
		return ErrListingNotFound
	}
	return nil
}

// ResetWindowViewCounts zeroes the windowed counter on all active listings.
// Setting to zero is idempotent per row, so a retried run after a crash is
// safe; the affected count reflects the active listings at call time.
func (r *PostgresRepository) ResetWindowViewCounts(ctx context.Context) (int, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "listings", tracing.DBOperationUpdate)
	var err error
	defer func() { endSpan(err) }()

	result, execErr := r.db.ExecContext(ctx, `
		UPDATE listings
		SET window_view_count = 0
		WHERE status = 'active'`)
	if execErr != nil {
		err = fmt.Errorf("reset window view counts: %w", execErr)
		return 0, err
	}

	affected, raErr := result.RowsAffected()
	if raErr != nil {
		err = fmt.Errorf("reset rows affected: %w", raErr)
		return 0, err
	}

	r.logger.DebugContext(ctx, "window view counts reset", "affected", affected)
	return int(affected), nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*Listing, error) {
	var (
		l        Listing
		lat, lng sql.NullFloat64
		tier     string
		status   string
	)

	if err := row.Scan(
		&l.ID, &l.OwnerID, &l.LocationName, &lat, &lng, &l.Category,
		&l.CountryCode, &tier, &l.Verified, &l.CreatedAt,
		&l.WindowViewCount, &l.TotalViewCount, &status,
	); err != nil {
		return nil, err
	}

	if lat.Valid && lng.Valid {
		l.Coordinates = &geo.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}

	parsed, err := ParseTier(tier)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", l.ID, err)
	}
	l.Tier = parsed
	l.Status = Status(status)

	return &l, nil
}
