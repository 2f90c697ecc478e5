package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roulette-server/internal/game/roulette"
)

func newTestDirectory(t *testing.T) (*Directory, *fakeSettlement) {
	t.Helper()
	cfg := testConfig()
	cfg.BettingSeconds = 1_000
	settlement := &fakeSettlement{balances: map[int64]int64{1: 5_000, 2: 50_000}}
	d := NewDirectory(cfg, Deps{
		Settlement:  settlement,
		Broadcaster: newFakeBroadcaster(),
	})
	t.Cleanup(d.CloseAll)
	return d, settlement
}

func TestDirectory_GetOrCreate(t *testing.T) {
	d, _ := newTestDirectory(t)

	r1, err := d.GetOrCreate("alpha", ModeSingle)
	require.NoError(t, err)
	r2, err := d.GetOrCreate("alpha", ModeSingle)
	require.NoError(t, err)
	assert.Same(t, r1, r2)

	_, err = d.GetOrCreate("alpha", ModeTournament)
	requireDenied(t, err, ErrWrongMode)

	_, err = d.GetOrCreate("", ModeSingle)
	assert.Error(t, err)
	_, err = d.GetOrCreate("beta", Mode("blackjack"))
	assert.Error(t, err)

	got, ok := d.Get("alpha")
	require.True(t, ok)
	assert.Same(t, r1, got)
	_, ok = d.Get("missing")
	assert.False(t, ok)
}

func TestDirectory_ListIsSorted(t *testing.T) {
	d, _ := newTestDirectory(t)
	for _, id := range []string{"charlie", "alpha", "bravo"} {
		_, err := d.GetOrCreate(id, ModeSingle)
		require.NoError(t, err)
	}

	rooms := d.List()
	require.Len(t, rooms, 3)
	assert.Equal(t, "alpha", rooms[0].ID)
	assert.Equal(t, "bravo", rooms[1].ID)
	assert.Equal(t, "charlie", rooms[2].ID)
	assert.Equal(t, 3, d.Count())
}

func TestDirectory_JoinLoadsBalance(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	r, state, err := d.Join(ctx, "alpha", ModeSingle, JoinRequest{PlayerID: 2, Name: "bob", Balance: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), state.Balance)
	assert.Equal(t, StateBetting, state.RoomState)
	assert.Equal(t, 1, r.PlayerCount())

	state, err = r.PlaceBet(ctx, 2, roulette.MustParseBetID("straight_7"), 500)
	require.NoError(t, err)
	assert.Equal(t, int64(49_500), state.Balance)
}

func TestDirectory_JoinBalanceFailure(t *testing.T) {
	d, settlement := newTestDirectory(t)
	settlement.fail = errors.New("wallet offline")

	_, _, err := d.Join(context.Background(), "alpha", ModeSingle, JoinRequest{PlayerID: 1})
	require.Error(t, err)
	assert.ErrorContains(t, err, "wallet offline")
	assert.Equal(t, 0, d.Count())
}

func TestDirectory_FailedTournamentJoinLeavesNoRoom(t *testing.T) {
	d, _ := newTestDirectory(t)

	// player 1 holds 5000, below the 10000 entry fee
	_, _, err := d.Join(context.Background(), "cup", ModeTournament, JoinRequest{PlayerID: 1})
	requireDenied(t, err, ErrInsufficientBalance)

	require.Eventually(t, func() bool { return d.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDirectory_RoomLeavesWhenEmpty(t *testing.T) {
	d, _ := newTestDirectory(t)
	ctx := context.Background()

	r, _, err := d.Join(ctx, "alpha", ModeSingle, JoinRequest{PlayerID: 1})
	require.NoError(t, err)

	_, err = r.RemovePlayer(ctx, 1)
	require.NoError(t, err)

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("room did not close")
	}
	require.Eventually(t, func() bool { return d.Count() == 0 }, 2*time.Second, 10*time.Millisecond)

	// the next join gets a fresh room under the same id
	r2, _, err := d.Join(ctx, "alpha", ModeSingle, JoinRequest{PlayerID: 1})
	require.NoError(t, err)
	assert.NotSame(t, r, r2)
}

func TestDirectory_RemoveAndCloseAll(t *testing.T) {
	d, _ := newTestDirectory(t)
	a, err := d.GetOrCreate("alpha", ModeSingle)
	require.NoError(t, err)
	b, err := d.GetOrCreate("bravo", ModeTournament)
	require.NoError(t, err)

	assert.True(t, d.Remove("alpha"))
	assert.False(t, d.Remove("alpha"))
	assert.True(t, a.IsClosed())

	d.CloseAll()
	assert.Equal(t, 0, d.Count())
	assert.True(t, b.IsClosed())

	_, err = b.AddPlayer(context.Background(), JoinRequest{PlayerID: 1, Balance: 20_000})
	assert.ErrorIs(t, err, ErrRoomClosed)
}
