package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type migration struct {
	name string
	sql  string
}

var migrations = []migration{
	{
		name: "users",
		sql: `
			CREATE TABLE IF NOT EXISTS users (
				id BIGINT PRIMARY KEY,
				username VARCHAR(255) NOT NULL,
				balance BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		name: "transactions",
		sql: `
			CREATE TABLE IF NOT EXISTS transactions (
				id BIGSERIAL PRIMARY KEY,
				user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				amount BIGINT NOT NULL,
				type VARCHAR(50) NOT NULL,
				description TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_transactions_user_time ON transactions(user_id, created_at DESC);
			CREATE INDEX IF NOT EXISTS idx_transactions_type_time ON transactions(type, created_at DESC);
		`,
	},
	{
		name: "rounds",
		sql: `
			CREATE TABLE IF NOT EXISTS rounds (
				round_id UUID NOT NULL,
				player_id BIGINT NOT NULL,
				room_id VARCHAR(255) NOT NULL,
				tournament_id UUID,
				round_number INT NOT NULL,
				outcome_number SMALLINT NOT NULL,
				outcome_color VARCHAR(8) NOT NULL,
				total_staked BIGINT NOT NULL,
				total_winnings BIGINT NOT NULL,
				status VARCHAR(8) NOT NULL,
				balance_before BIGINT NOT NULL,
				balance_after BIGINT NOT NULL,
				breakdown JSONB NOT NULL,
				settled_at TIMESTAMPTZ NOT NULL,
				PRIMARY KEY (round_id, player_id)
			);
			CREATE INDEX IF NOT EXISTS idx_rounds_player_time ON rounds(player_id, settled_at DESC);
			CREATE INDEX IF NOT EXISTS idx_rounds_tournament ON rounds(tournament_id) WHERE tournament_id IS NOT NULL;
		`,
	},
	{
		name: "tournaments",
		sql: `
			CREATE TABLE IF NOT EXISTS tournaments (
				tournament_id UUID PRIMARY KEY,
				room_id VARCHAR(255) NOT NULL,
				entry_fee BIGINT NOT NULL,
				rounds INT NOT NULL,
				total_pot BIGINT NOT NULL,
				house_cut NUMERIC(5, 4) NOT NULL,
				playable_pot BIGINT NOT NULL,
				house_remainder BIGINT NOT NULL,
				standings JSONB NOT NULL,
				started_at TIMESTAMPTZ NOT NULL,
				finished_at TIMESTAMPTZ NOT NULL
			);
		`,
	},
	{
		name: "settlement_failures",
		sql: `
			CREATE TABLE IF NOT EXISTS settlement_failures (
				id BIGSERIAL PRIMARY KEY,
				player_id BIGINT NOT NULL,
				kind VARCHAR(50) NOT NULL,
				amount BIGINT NOT NULL,
				room_id VARCHAR(255) NOT NULL,
				round_id VARCHAR(64) NOT NULL DEFAULT '',
				error TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				resolved_at TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_settlement_failures_open ON settlement_failures(created_at) WHERE resolved_at IS NULL;
		`,
	},
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("step", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
