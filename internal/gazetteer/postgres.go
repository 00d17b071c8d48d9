package gazetteer

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/nearlist/nearlist/internal/geo"
	"github.com/nearlist/nearlist/internal/tracing"
)

// PostgresGazetteer implements Resolver backed by the gazetteer_entries table.
type PostgresGazetteer struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresGazetteer creates a new PostgresGazetteer.
func NewPostgresGazetteer(db *sql.DB, logger *slog.Logger) *PostgresGazetteer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresGazetteer{db: db, logger: logger}
}

// Resolve returns the coordinates for an exact normalized-name match.
func (g *PostgresGazetteer) Resolve(ctx context.Context, name string) (geo.Coordinates, error) {
	entry, err := g.Lookup(ctx, name)
	if err != nil {
		return geo.Coordinates{}, err
	}
	return entry.Coordinates, nil
}

// Lookup returns the full entry for an exact normalized-name match.
func (g *PostgresGazetteer) Lookup(ctx context.Context, name string) (*Entry, error) {
	key := Normalize(name)
	if key == "" {
		return nil, ErrLocationUnresolved
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, "gazetteer_entries", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	const query = `
		SELECT normalized_name, display_name, lat, lng, country_code
		FROM gazetteer_entries
		WHERE normalized_name = $1
	`

	var entry Entry
	err = g.db.QueryRowContext(ctx, query, key).Scan(
		&entry.NormalizedName,
		&entry.DisplayName,
		&entry.Coordinates.Lat,
		&entry.Coordinates.Lng,
		&entry.CountryCode,
	)
	if err == sql.ErrNoRows {
		err = nil // not a storage failure; miss is an expected outcome
		g.logger.DebugContext(ctx, "gazetteer miss", "normalized_name", key)
		return nil, ErrLocationUnresolved
	}
	if err != nil {
		return nil, fmt.Errorf("gazetteer lookup failed: %w", err)
	}

	return &entry, nil
}
