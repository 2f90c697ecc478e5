package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"roulette-server/internal/model"
)

var ErrTournamentNotFound = errors.New("tournament not found")

const roundColumns = `round_id, room_id, tournament_id, player_id, round_number, outcome_number,
	outcome_color, total_staked, total_winnings, status, balance_before, balance_after,
	breakdown, settled_at`

// RoundRepository stores settled rounds and finished tournaments. Records are
// append-only.
type RoundRepository struct {
	pool *pgxpool.Pool
}

// NewRoundRepository creates a new RoundRepository instance.
func NewRoundRepository(pool *pgxpool.Pool) *RoundRepository {
	return &RoundRepository{pool: pool}
}

// RecordRound stores one player's settlement of a round. Writing the same
// (round, player) twice keeps the first record.
func (r *RoundRepository) RecordRound(ctx context.Context, rec model.RoundRecord) error {
	const query = `
		INSERT INTO rounds (` + roundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (round_id, player_id) DO NOTHING
	`

	breakdown := rec.Breakdown
	if breakdown == nil {
		breakdown = []model.BetBreakdown{}
	}
	_, err := r.pool.Exec(ctx, query,
		rec.RoundID,
		rec.RoomID,
		rec.TournamentID,
		rec.PlayerID,
		rec.RoundNumber,
		rec.OutcomeNumber,
		rec.OutcomeColor,
		rec.TotalStaked,
		rec.TotalWinnings,
		rec.Status,
		rec.BalanceBefore,
		rec.BalanceAfter,
		breakdown,
		rec.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record round: %w", err)
	}
	return nil
}

// GetRoundsByPlayer returns a player's settled rounds, newest first.
func (r *RoundRepository) GetRoundsByPlayer(ctx context.Context, playerID int64, limit int) ([]*model.RoundRecord, error) {
	const query = `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE player_id = $1
		ORDER BY settled_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get rounds: %w", err)
	}
	return collectRounds(rows)
}

// GetRoundsByTournament returns every round record of a tournament in play order.
func (r *RoundRepository) GetRoundsByTournament(ctx context.Context, tournamentID string) ([]*model.RoundRecord, error) {
	const query = `
		SELECT ` + roundColumns + `
		FROM rounds
		WHERE tournament_id = $1
		ORDER BY round_number, player_id
	`

	rows, err := r.pool.Query(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament rounds: %w", err)
	}
	return collectRounds(rows)
}

func collectRounds(rows pgx.Rows) ([]*model.RoundRecord, error) {
	defer rows.Close()

	var records []*model.RoundRecord
	for rows.Next() {
		var rec model.RoundRecord
		err := rows.Scan(
			&rec.RoundID,
			&rec.RoomID,
			&rec.TournamentID,
			&rec.PlayerID,
			&rec.RoundNumber,
			&rec.OutcomeNumber,
			&rec.OutcomeColor,
			&rec.TotalStaked,
			&rec.TotalWinnings,
			&rec.Status,
			&rec.BalanceBefore,
			&rec.BalanceAfter,
			&rec.Breakdown,
			&rec.SettledAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rounds: %w", err)
	}
	return records, nil
}

// RecordTournament stores the final result of a tournament.
func (r *RoundRepository) RecordTournament(ctx context.Context, rec model.TournamentRecord) error {
	const query = `
		INSERT INTO tournaments (tournament_id, room_id, entry_fee, rounds, total_pot, house_cut,
			playable_pot, house_remainder, standings, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (tournament_id) DO NOTHING
	`

	cut, err := decimal.NewFromString(rec.HouseCut)
	if err != nil {
		return fmt.Errorf("invalid house cut %q: %w", rec.HouseCut, err)
	}
	standings := rec.Standings
	if standings == nil {
		standings = []model.Standing{}
	}

	_, err = r.pool.Exec(ctx, query,
		rec.TournamentID,
		rec.RoomID,
		rec.EntryFee,
		rec.Rounds,
		rec.TotalPot,
		cut,
		rec.PlayablePot,
		rec.HouseRemainder,
		standings,
		rec.StartedAt,
		rec.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record tournament: %w", err)
	}
	return nil
}

// GetTournament retrieves a finished tournament.
// Returns ErrTournamentNotFound if no record exists.
func (r *RoundRepository) GetTournament(ctx context.Context, tournamentID string) (*model.TournamentRecord, error) {
	const query = `
		SELECT tournament_id, room_id, entry_fee, rounds, total_pot, house_cut,
			playable_pot, house_remainder, standings, started_at, finished_at
		FROM tournaments
		WHERE tournament_id = $1
	`

	var (
		rec model.TournamentRecord
		cut decimal.Decimal
	)
	err := r.pool.QueryRow(ctx, query, tournamentID).Scan(
		&rec.TournamentID,
		&rec.RoomID,
		&rec.EntryFee,
		&rec.Rounds,
		&rec.TotalPot,
		&cut,
		&rec.PlayablePot,
		&rec.HouseRemainder,
		&rec.Standings,
		&rec.StartedAt,
		&rec.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	rec.HouseCut = cut.String()
	return &rec, nil
}
