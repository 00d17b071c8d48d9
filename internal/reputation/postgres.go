package reputation

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nearlist/nearlist/internal/owner"
	"github.com/nearlist/nearlist/internal/tracing"
)

// PostgresStore implements Store backed by the votes and owners tables.
// Every mutation runs in a single transaction that locks the target owner
// row, so the vote write and the score recompute are one atomic unit and
// concurrent mutations on the same target serialize instead of losing
// updates. Mutations on different targets take different row locks and
// proceed in parallel.
type PostgresStore struct {
	db     *sql.DB
	levels *LevelTable
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sql.DB, levels *LevelTable, logger *slog.Logger) *PostgresStore {
	if levels == nil {
		levels = DefaultLevelTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, levels: levels, logger: logger}
}

// Upsert writes the vote and recomputes the target's score in one transaction.
func (s *PostgresStore) Upsert(ctx context.Context, vote Vote) (MutationResult, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "votes", tracing.DBOperationUpdate)
	var err error
	defer func() { endSpan(err) }()

	tx, txErr := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if txErr != nil {
		err = &TransientError{Err: fmt.Errorf("begin vote upsert: %w", txErr)}
		return MutationResult{}, err
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.WarnContext(ctx, "failed to rollback vote upsert", "error", rbErr)
		}
	}()

	bonus, lockErr := lockOwner(ctx, tx, vote.TargetID)
	if lockErr != nil {
		err = lockErr
		return MutationResult{}, err
	}

	if vote.ID == "" {
		vote.ID = uuid.New().String()
	}

	// created_at is deliberately not updated on conflict so a re-cast cannot
	// inflate recency.
	var inserted bool
	upsertErr := tx.QueryRowContext(ctx, `
		INSERT INTO votes (id, voter_id, target_id, weight_class, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (voter_id, target_id) DO UPDATE
		SET weight_class = EXCLUDED.weight_class
		RETURNING (xmax = 0)`,
		vote.ID, vote.VoterID, vote.TargetID, vote.Weight.String(),
	).Scan(&inserted)
	if upsertErr != nil {
		err = &TransientError{Err: fmt.Errorf("upsert vote: %w", upsertErr)}
		return MutationResult{}, err
	}

	summary, recomputeErr := s.recomputeInTx(ctx, tx, vote.TargetID, bonus)
	if recomputeErr != nil {
		err = recomputeErr
		return MutationResult{}, err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = &TransientError{Err: fmt.Errorf("commit vote upsert: %w", commitErr)}
		return MutationResult{}, err
	}

	return MutationResult{Inserted: inserted, Score: summary.Score, Level: summary.Level}, nil
}

// Delete removes the vote and recomputes the target's score in one transaction.
func (s *PostgresStore) Delete(ctx context.Context, voterID, targetID string) (MutationResult, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "votes", tracing.DBOperationDelete)
	var err error
	defer func() { endSpan(err) }()

	tx, txErr := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if txErr != nil {
		err = &TransientError{Err: fmt.Errorf("begin vote delete: %w", txErr)}
		return MutationResult{}, err
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.WarnContext(ctx, "failed to rollback vote delete", "error", rbErr)
		}
	}()

	bonus, lockErr := lockOwner(ctx, tx, targetID)
	if lockErr != nil {
		err = lockErr
		return MutationResult{}, err
	}

	result, delErr := tx.ExecContext(ctx,
		`DELETE FROM votes WHERE voter_id = $1 AND target_id = $2`, voterID, targetID)
	if delErr != nil {
		err = &TransientError{Err: fmt.Errorf("delete vote: %w", delErr)}
		return MutationResult{}, err
	}
	affected, raErr := result.RowsAffected()
	if raErr != nil {
		err = &TransientError{Err: fmt.Errorf("delete vote rows affected: %w", raErr)}
		return MutationResult{}, err
	}
	if affected == 0 {
		return MutationResult{}, ErrVoteNotFound
	}

	summary, recomputeErr := s.recomputeInTx(ctx, tx, targetID, bonus)
	if recomputeErr != nil {
		err = recomputeErr
		return MutationResult{}, err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = &TransientError{Err: fmt.Errorf("commit vote delete: %w", commitErr)}
		return MutationResult{}, err
	}

	return MutationResult{Score: summary.Score, Level: summary.Level}, nil
}

// GetVote returns the current vote for (voter, target).
func (s *PostgresStore) GetVote(ctx context.Context, voterID, targetID string) (*Vote, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "votes", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	var (
		v     Vote
		class string
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT id, voter_id, target_id, weight_class, created_at
		FROM votes WHERE voter_id = $1 AND target_id = $2`,
		voterID, targetID,
	).Scan(&v.ID, &v.VoterID, &v.TargetID, &class, &v.CreatedAt)
	if err == sql.ErrNoRows {
		err = nil
		return nil, ErrVoteNotFound
	}
	if err != nil {
		err = &TransientError{Err: fmt.Errorf("get vote: %w", err)}
		return nil, err
	}

	weight, parseErr := ParseWeightClass(class)
	if parseErr != nil {
		return nil, fmt.Errorf("vote %s: %w", v.ID, parseErr)
	}
	v.Weight = weight
	return &v, nil
}

// VotesFor returns all current votes targeting an owner.
func (s *PostgresStore) VotesFor(ctx context.Context, targetID string) ([]Vote, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "votes", tracing.DBOperationQuery)
	var err error
	defer func() { endSpan(err) }()

	rows, queryErr := s.db.QueryContext(ctx, `
		SELECT id, voter_id, target_id, weight_class, created_at
		FROM votes WHERE target_id = $1 ORDER BY voter_id`, targetID)
	if queryErr != nil {
		err = &TransientError{Err: fmt.Errorf("votes for %s: %w", targetID, queryErr)}
		return nil, err
	}
	defer rows.Close()

	var result []Vote
	for rows.Next() {
		var (
			v     Vote
			class string
		)
		if scanErr := rows.Scan(&v.ID, &v.VoterID, &v.TargetID, &class, &v.CreatedAt); scanErr != nil {
			err = &TransientError{Err: fmt.Errorf("scan vote: %w", scanErr)}
			return nil, err
		}
		weight, parseErr := ParseWeightClass(class)
		if parseErr != nil {
			return nil, fmt.Errorf("vote %s: %w", v.ID, parseErr)
		}
		v.Weight = weight
		result = append(result, v)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		err = &TransientError{Err: fmt.Errorf("iterate votes: %w", rowsErr)}
		return nil, err
	}
	return result, nil
}

// lockOwner takes the per-target row lock and returns the owner's bonus score.
func lockOwner(ctx context.Context, tx *sql.Tx, targetID string) (int64, error) {
	var bonus int64
	err := tx.QueryRowContext(ctx,
		`SELECT bonus_score FROM owners WHERE id = $1 FOR UPDATE`, targetID).Scan(&bonus)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("target owner %s: %w", targetID, owner.ErrOwnerNotFound)
	}
	if err != nil {
		return 0, &TransientError{Err: fmt.Errorf("lock owner %s: %w", targetID, err)}
	}
	return bonus, nil
}

// recomputeInTx derives score = Σ points + bonus inside the mutation's
// transaction and persists it on the owner row.
func (s *PostgresStore) recomputeInTx(ctx context.Context, tx *sql.Tx, targetID string, bonus int64) (Summary, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT weight_class FROM votes WHERE target_id = $1`, targetID)
	if err != nil {
		return Summary{}, &TransientError{Err: fmt.Errorf("read votes for recompute: %w", err)}
	}
	defer rows.Close()

	var score int64
	for rows.Next() {
		var class string
		if err := rows.Scan(&class); err != nil {
			return Summary{}, &TransientError{Err: fmt.Errorf("scan weight class: %w", err)}
		}
		weight, parseErr := ParseWeightClass(class)
		if parseErr != nil {
			return Summary{}, fmt.Errorf("target %s: %w", targetID, parseErr)
		}
		score += weight.Points()
	}
	if err := rows.Err(); err != nil {
		return Summary{}, &TransientError{Err: fmt.Errorf("iterate weight classes: %w", err)}
	}

	score += bonus
	level := s.levels.LevelFor(score)

	if _, err := tx.ExecContext(ctx,
		`UPDATE owners SET reputation_score = $2, level = $3 WHERE id = $1`,
		targetID, score, level); err != nil {
		return Summary{}, &TransientError{Err: fmt.Errorf("persist reputation: %w", err)}
	}

	return Summary{Score: score, Level: level}, nil
}
