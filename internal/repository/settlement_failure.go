package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"roulette-server/internal/model"
)

var ErrFailureNotFound = errors.New("settlement failure not found or already resolved")

// SettlementFailureRepository keeps failed settlement provider calls until an
// operator reconciles them.
type SettlementFailureRepository struct {
	pool *pgxpool.Pool
}

// NewSettlementFailureRepository creates a new SettlementFailureRepository instance.
func NewSettlementFailureRepository(pool *pgxpool.Pool) *SettlementFailureRepository {
	return &SettlementFailureRepository{pool: pool}
}

// RecordFailure stores a failed call.
func (r *SettlementFailureRepository) RecordFailure(ctx context.Context, f model.SettlementFailure) error {
	const query = `
		INSERT INTO settlement_failures (player_id, kind, amount, room_id, round_id, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query, f.PlayerID, f.Kind, f.Amount, f.RoomID, f.RoundID, f.Error, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record settlement failure: %w", err)
	}
	return nil
}

// ListUnresolved returns open failures, oldest first.
func (r *SettlementFailureRepository) ListUnresolved(ctx context.Context, limit int) ([]*model.SettlementFailure, error) {
	const query = `
		SELECT id, player_id, kind, amount, room_id, round_id, error, created_at, resolved_at
		FROM settlement_failures
		WHERE resolved_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlement failures: %w", err)
	}
	defer rows.Close()

	var failures []*model.SettlementFailure
	for rows.Next() {
		var f model.SettlementFailure
		err := rows.Scan(
			&f.ID,
			&f.PlayerID,
			&f.Kind,
			&f.Amount,
			&f.RoomID,
			&f.RoundID,
			&f.Error,
			&f.CreatedAt,
			&f.ResolvedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settlement failure: %w", err)
		}
		failures = append(failures, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settlement failures: %w", err)
	}
	return failures, nil
}

// Resolve marks a failure as reconciled.
func (r *SettlementFailureRepository) Resolve(ctx context.Context, id int64) error {
	const query = `UPDATE settlement_failures SET resolved_at = NOW() WHERE id = $1 AND resolved_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to resolve settlement failure: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFailureNotFound
	}
	return nil
}
