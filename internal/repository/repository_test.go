// Package repository provides data access layer implementations.
// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"roulette-server/internal/model"
	"roulette-server/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container with the schema applied.
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))
	// migrations are idempotent
	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

// ============================================================================
// UserRepository Tests
// ============================================================================

func TestUserRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, err := repo.Create(ctx, 12345, "testuser", 100_000)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.ID)
	assert.Equal(t, "testuser", user.Username)
	assert.Equal(t, int64(100_000), user.Balance)
	assert.False(t, user.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, user.Balance, got.Balance)

	_, err = repo.GetByID(ctx, 99999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, created, err := repo.GetOrCreate(ctx, 12345, "testuser", 500)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(500), user.Balance)

	user, created, err = repo.GetOrCreate(ctx, 12345, "testuser", 9_999)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(500), user.Balance, "existing users keep their balance")
}

func TestUserRepository_UpdateBalance(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 12345, "testuser", 1_000)
	require.NoError(t, err)

	user, err := repo.UpdateBalance(ctx, 12345, 500)
	require.NoError(t, err)
	assert.Equal(t, int64(1_500), user.Balance)

	user, err = repo.UpdateBalance(ctx, 12345, -1_500)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Balance)

	_, err = repo.UpdateBalance(ctx, 12345, -1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	user, err = repo.GetByID(ctx, 12345)
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Balance, "a refused debit changes nothing")

	_, err = repo.UpdateBalance(ctx, 99999, 100)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_Exists(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, 12345, "testuser", 0)
	require.NoError(t, err)

	exists, err := repo.Exists(ctx, 12345)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists(ctx, 99999)
	require.NoError(t, err)
	assert.False(t, exists)
}

// ============================================================================
// TransactionRepository Tests
// ============================================================================

func TestTransactionRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	users := NewUserRepository(pool)
	repo := NewTransactionRepository(pool)
	ctx := context.Background()

	_, err := users.Create(ctx, 1, "alice", 10_000)
	require.NoError(t, err)

	desc := "room alpha"
	_, err = repo.Create(ctx, 1, -400, model.TxTypeRouletteBet, &desc)
	require.NoError(t, err)
	_, err = repo.Create(ctx, 1, 4_200, model.TxTypeRouletteWin, &desc)
	require.NoError(t, err)
	_, err = repo.Create(ctx, 1, -10_000, model.TxTypeTournamentEntry, nil)
	require.NoError(t, err)

	all, err := repo.GetByUserID(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.TxTypeTournamentEntry, all[0].Type)
	assert.Nil(t, all[0].Description)

	bets, err := repo.GetByUserIDAndType(ctx, 1, model.TxTypeRouletteBet, 10)
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, int64(-400), bets[0].Amount)
	require.NotNil(t, bets[0].Description)
	assert.Equal(t, "room alpha", *bets[0].Description)

	net, err := repo.SumByUser(ctx, 1, model.TxTypeRouletteBet, model.TxTypeRouletteWin)
	require.NoError(t, err)
	assert.Equal(t, int64(3_800), net)
}

// ============================================================================
// RoundRepository Tests
// ============================================================================

func TestRoundRepository_RecordRound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRoundRepository(pool)
	ctx := context.Background()

	rec := model.RoundRecord{
		RoundID:       uuid.NewString(),
		RoomID:        "alpha",
		PlayerID:      7,
		RoundNumber:   3,
		OutcomeNumber: 17,
		OutcomeColor:  "black",
		TotalStaked:   400,
		TotalWinnings: 4_200,
		Status:        model.ResultWin,
		BalanceBefore: 10_000,
		BalanceAfter:  13_800,
		Breakdown: []model.BetBreakdown{
			{Bet: "straight_17", Amount: 100, Multiplier: 35, Winnings: 3_600},
			{Bet: "even_money_black", Amount: 300, Multiplier: 1, Winnings: 600},
		},
		SettledAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.RecordRound(ctx, rec))
	// duplicates are ignored
	dup := rec
	dup.TotalWinnings = 0
	require.NoError(t, repo.RecordRound(ctx, dup))

	got, err := repo.GetRoundsByPlayer(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.RoundID, got[0].RoundID)
	assert.Nil(t, got[0].TournamentID)
	assert.Equal(t, int64(4_200), got[0].TotalWinnings)
	assert.Equal(t, rec.Breakdown, got[0].Breakdown)
	assert.Equal(t, int64(3_800), got[0].Net())
	assert.True(t, rec.SettledAt.Equal(got[0].SettledAt))
}

func TestRoundRepository_Tournament(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewRoundRepository(pool)
	ctx := context.Background()
	tournamentID := uuid.NewString()

	for _, player := range []int64{2, 1} {
		id := tournamentID
		require.NoError(t, repo.RecordRound(ctx, model.RoundRecord{
			RoundID:       uuid.NewString(),
			RoomID:        "cup",
			TournamentID:  &id,
			PlayerID:      player,
			RoundNumber:   1,
			OutcomeNumber: 0,
			OutcomeColor:  "green",
			TotalStaked:   100,
			Status:        model.ResultLose,
			BalanceBefore: 10_000,
			BalanceAfter:  9_900,
			Breakdown:     []model.BetBreakdown{{Bet: "dozen_1", Amount: 100}},
			SettledAt:     time.Now(),
		}))
	}

	rounds, err := repo.GetRoundsByTournament(ctx, tournamentID)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, int64(1), rounds[0].PlayerID)
	require.NotNil(t, rounds[0].TournamentID)
	assert.Equal(t, tournamentID, *rounds[0].TournamentID)

	started := time.Now().Add(-time.Minute).UTC().Truncate(time.Microsecond)
	rec := model.TournamentRecord{
		TournamentID:   tournamentID,
		RoomID:         "cup",
		EntryFee:       10_000,
		Rounds:         10,
		TotalPot:       30_000,
		HouseCut:       "0.2",
		PlayablePot:    24_000,
		HouseRemainder: 0,
		Standings: []model.Standing{
			{PlayerID: 1, Name: "alice", TournamentBalance: 13_500, Prize: 12_000, Connected: true},
			{PlayerID: 2, Name: "bob", TournamentBalance: 13_500, Prize: 12_000},
			{PlayerID: 3, Name: "carol", TournamentBalance: 9_900, Connected: true},
		},
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
	require.NoError(t, repo.RecordTournament(ctx, rec))

	got, err := repo.GetTournament(ctx, tournamentID)
	require.NoError(t, err)
	assert.Equal(t, rec.Standings, got.Standings)
	assert.Equal(t, "0.2", got.HouseCut)
	assert.Equal(t, int64(24_000), got.PlayablePot)

	_, err = repo.GetTournament(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

// ============================================================================
// SettlementFailureRepository Tests
// ============================================================================

func TestSettlementFailureRepository(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSettlementFailureRepository(pool)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.RecordFailure(ctx, model.SettlementFailure{
		PlayerID: 1, Kind: model.TxTypeRouletteWin, Amount: 4_200, RoomID: "alpha",
		RoundID: uuid.NewString(), Error: "wallet offline", CreatedAt: now.Add(-time.Second),
	}))
	require.NoError(t, repo.RecordFailure(ctx, model.SettlementFailure{
		PlayerID: 2, Kind: model.TxTypeTournamentEntry, Amount: 10_000, RoomID: "cup",
		Error: "timeout", CreatedAt: now,
	}))

	open, err := repo.ListUnresolved(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, int64(1), open[0].PlayerID)
	assert.Equal(t, "wallet offline", open[0].Error)
	assert.Nil(t, open[0].ResolvedAt)
	assert.Empty(t, open[1].RoundID)

	require.NoError(t, repo.Resolve(ctx, open[0].ID))
	assert.ErrorIs(t, repo.Resolve(ctx, open[0].ID), ErrFailureNotFound)

	open, err = repo.ListUnresolved(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, int64(2), open[0].PlayerID)
}
