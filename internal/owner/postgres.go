package owner

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nearlist/nearlist/internal/tracing"
)

// PostgresRepository implements Repository backed by the owners table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID retrieves an owner by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Owner, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "owners", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	var o Owner
	err = r.db.QueryRowContext(ctx, `
		SELECT id, reputation_score, bonus_score, level, account_created_at
		FROM owners WHERE id = $1`, id).Scan(
		&o.ID, &o.ReputationScore, &o.BonusScore, &o.Level, &o.AccountCreatedAt,
	)
	if err == sql.ErrNoRows {
		err = nil
		return nil, ErrOwnerNotFound
	}
	if err != nil {
		err = fmt.Errorf("get owner: %w", err)
		return nil, err
	}
	return &o, nil
}

// Upsert creates the owner or replaces its profile fields. The cached
// reputation aggregate is left untouched on conflict.
func (r *PostgresRepository) Upsert(ctx context.Context, o *Owner) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "owners", tracing.DBOperationInsert)
	var err error
	defer func() { endSpan(err) }()

	_, execErr := r.db.ExecContext(ctx, `
		INSERT INTO owners (id, reputation_score, bonus_score, level, account_created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET bonus_score = EXCLUDED.bonus_score,
		    account_created_at = EXCLUDED.account_created_at`,
		o.ID, o.ReputationScore, o.BonusScore, o.Level, o.AccountCreatedAt)
	if execErr != nil {
		err = fmt.Errorf("upsert owner: %w", execErr)
		return err
	}
	return nil
}

// SaveReputation persists the recomputed score and level for an owner.
func (r *PostgresRepository) SaveReputation(ctx context.Context, ownerID string, score int64, level int) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, "owners", tracing.DBOperationUpdate)
	var err error
	defer func() { endSpan(err) }()

	result, execErr := r.db.ExecContext(ctx, `
		UPDATE owners SET reputation_score = $2, level = $3 WHERE id = $1`,
		ownerID, score, level)
	if execErr != nil {
		err = fmt.Errorf("save reputation: %w", execErr)
		return err
	}

	affected, raErr := result.RowsAffected()
	if raErr != nil {
		err = fmt.Errorf("save reputation rows affected: %w", raErr)
		return err
	}
	if affected == 0 {
		return ErrOwnerNotFound
	}
	return nil
}
