package roulette

import (
	"testing"

	"pgregory.net/rapid"
)

// TestColorOf tests the fixed red/black partition.
func TestColorOf(t *testing.T) {
	reds, blacks := 0, 0
	for n := 1; n <= MaxNumber; n++ {
		switch ColorOf(n) {
		case ColorRed:
			reds++
		case ColorBlack:
			blacks++
		default:
			t.Fatalf("ColorOf(%d) = %s, want red or black", n, ColorOf(n))
		}
	}
	if reds != 18 || blacks != 18 {
		t.Errorf("got %d red and %d black, want 18 each", reds, blacks)
	}
	if ColorOf(0) != ColorGreen {
		t.Errorf("ColorOf(0) = %s, want green", ColorOf(0))
	}
}

// TestMultiplier tests one winning and one losing case per family.
func TestMultiplier(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		number   int
		expected int
	}{
		{"straight hit", "straight_17", 17, 35},
		{"straight miss", "straight_17", 18, 0},
		{"straight zero", "straight_0", 0, 35},
		{"split hit", "split_17_20", 20, 17},
		{"split miss", "split_17_20", 18, 0},
		{"split with zero", "split_0_2", 0, 17},
		{"street hit", "street_13_14_15", 14, 11},
		{"street miss", "street_13_14_15", 16, 0},
		{"trio hit zero", "trio_0_1_2", 0, 11},
		{"trio miss", "trio_0_2_3", 1, 0},
		{"corner hit", "corner_1_2_4_5", 5, 8},
		{"corner miss", "corner_1_2_4_5", 3, 0},
		{"basket hit", "basket", 3, 8},
		{"basket miss", "basket", 4, 0},
		{"line hit", "line_31_32_33_34_35_36", 36, 5},
		{"line miss", "line_31_32_33_34_35_36", 30, 0},
		{"dozen 1 hit", "dozen_1", 12, 2},
		{"dozen 2 hit", "dozen_2", 13, 2},
		{"dozen 3 miss", "dozen_3", 24, 0},
		{"dozen zero", "dozen_1", 0, 0},
		{"column 1 hit", "column_1", 34, 2},
		{"column 2 hit", "column_2", 2, 2},
		{"column 3 hit", "column_3", 36, 2},
		{"column zero", "column_3", 0, 0},
		{"red hit", "even_money_red", 1, 1},
		{"red miss", "even_money_red", 2, 0},
		{"black hit", "even_money_black", 17, 1},
		{"even hit", "even_money_even", 36, 1},
		{"even zero", "even_money_even", 0, 0},
		{"odd hit", "even_money_odd", 35, 1},
		{"low hit", "even_money_low", 18, 1},
		{"low miss", "even_money_low", 19, 0},
		{"high hit", "even_money_high", 19, 1},
		{"high zero", "even_money_high", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Multiplier(MustOutcome(tt.number), MustParseBetID(tt.key))
			if got != tt.expected {
				t.Errorf("Multiplier(%d, %s) = %d, want %d", tt.number, tt.key, got, tt.expected)
			}
		})
	}
}

// TestMultiplierMalformed tests that identifiers with the wrong arity or an unknown
// family pay nothing instead of guessing.
func TestMultiplierMalformed(t *testing.T) {
	tests := []struct {
		name string
		id   BetID
	}{
		{"zero value", BetID{}},
		{"unknown family", BetID{Family: "neighbours"}},
		{"split with one number", withNumbers(FamilySplit, []int{17})},
		{"corner with three numbers", withNumbers(FamilyCorner, []int{1, 2, 4})},
		{"line with four numbers", withNumbers(FamilyLine, []int{1, 2, 3, 4})},
		{"street with two numbers", withNumbers(FamilyStreet, []int{1, 2})},
		{"dozen index 4", Dozen(4)},
		{"column index 0", Column(0)},
		{"even money unknown kind", Even("green")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for n := 0; n <= MaxNumber; n++ {
				if got := Multiplier(MustOutcome(n), tt.id); got != 0 {
					t.Fatalf("Multiplier(%d, %+v) = %d, want 0", n, tt.id, got)
				}
			}
		})
	}
}

// TestWinnings tests the stake-plus-profit convention.
func TestWinnings(t *testing.T) {
	o := MustOutcome(17)
	if got := Winnings(o, BetEntry{ID: Straight(17), Amount: 100}); got != 3600 {
		t.Errorf("straight win = %d, want 3600", got)
	}
	if got := Winnings(o, BetEntry{ID: Straight(18), Amount: 100}); got != 0 {
		t.Errorf("straight loss = %d, want 0", got)
	}
	if got := Winnings(o, BetEntry{ID: Even(EvenMoneyBlack), Amount: 300}); got != 600 {
		t.Errorf("black win = %d, want 600", got)
	}
}

// TestSettleEntriesScenario settles straight_17 (100) and even_money_black (300) on 17 black.
func TestSettleEntriesScenario(t *testing.T) {
	o := MustOutcome(17)
	if o.Color != ColorBlack {
		t.Fatalf("17 should be black, got %s", o.Color)
	}
	staked, winnings := SettleEntries(o, []BetEntry{
		{ID: MustParseBetID("straight_17"), Amount: 100},
		{ID: MustParseBetID("even_money_black"), Amount: 300},
	})
	if staked != 400 {
		t.Errorf("staked = %d, want 400", staked)
	}
	if winnings != 4200 {
		t.Errorf("winnings = %d, want 4200 (100+3500 + 300+300)", winnings)
	}
}

// TestStraightPayoutProperty checks every straight bet against every outcome.
func TestStraightPayoutProperty(t *testing.T) {
	for n := 0; n <= MaxNumber; n++ {
		for bet := 0; bet <= MaxNumber; bet++ {
			want := 0
			if bet == n {
				want = MultiplierStraight
			}
			if got := Multiplier(MustOutcome(n), Straight(bet)); got != want {
				t.Fatalf("Multiplier(%d, straight_%d) = %d, want %d", n, bet, got, want)
			}
		}
	}
}

// TestZeroLosesOutsideBetsProperty checks that zero never pays a dozen, column or
// even-money bet.
func TestZeroLosesOutsideBetsProperty(t *testing.T) {
	zero := MustOutcome(0)
	ids := []BetID{Dozen(1), Dozen(2), Dozen(3), Column(1), Column(2), Column(3)}
	for k := range opposites {
		ids = append(ids, Even(k))
	}
	for _, id := range ids {
		if got := Multiplier(zero, id); got != 0 {
			t.Errorf("Multiplier(0, %s) = %d, want 0", id, got)
		}
	}
}

// TestOutsideBetCoverageProperty checks that every non-zero number is covered by exactly
// one dozen, one column and one of each even-money pair.
func TestOutsideBetCoverageProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, MaxNumber).Draw(t, "number")
		o := MustOutcome(n)

		count := func(ids ...BetID) int {
			c := 0
			for _, id := range ids {
				if Multiplier(o, id) > 0 {
					c++
				}
			}
			return c
		}

		if c := count(Dozen(1), Dozen(2), Dozen(3)); c != 1 {
			t.Fatalf("number %d won %d dozens", n, c)
		}
		if c := count(Column(1), Column(2), Column(3)); c != 1 {
			t.Fatalf("number %d won %d columns", n, c)
		}
		pairs := [][2]EvenMoney{
			{EvenMoneyRed, EvenMoneyBlack},
			{EvenMoneyEven, EvenMoneyOdd},
			{EvenMoneyLow, EvenMoneyHigh},
		}
		for _, p := range pairs {
			if c := count(Even(p[0]), Even(p[1])); c != 1 {
				t.Fatalf("number %d won %d of %s/%s", n, c, p[0], p[1])
			}
		}
	})
}

// TestBalanceConservationProperty checks that settling any set of bets satisfies
// after = before - staked + winnings, and that winnings are either 0 or stake*(m+1).
func TestBalanceConservationProperty(t *testing.T) {
	keys := []string{
		"straight_0", "straight_17", "split_1_2", "split_0_3", "street_4_5_6",
		"trio_0_1_2", "corner_8_9_11_12", "basket", "line_19_20_21_22_23_24",
		"dozen_1", "dozen_3", "column_2", "even_money_red", "even_money_odd", "even_money_high",
	}
	rapid.Check(t, func(t *rapid.T) {
		o := MustOutcome(rapid.IntRange(0, MaxNumber).Draw(t, "number"))
		before := rapid.Int64Range(0, 1_000_000).Draw(t, "balance")

		numBets := rapid.IntRange(0, 8).Draw(t, "numBets")
		entries := make([]BetEntry, 0, numBets)
		for i := 0; i < numBets; i++ {
			key := rapid.SampledFrom(keys).Draw(t, "key")
			amount := rapid.Int64Range(1, 5_000).Draw(t, "amount")
			entries = append(entries, BetEntry{ID: MustParseBetID(key), Amount: amount})
		}

		balance := before
		for _, e := range entries {
			balance -= e.Amount
		}
		staked, winnings := SettleEntries(o, entries)
		for _, e := range entries {
			balance += Winnings(o, e)
		}

		if balance != before-staked+winnings {
			t.Fatalf("balance %d != %d - %d + %d", balance, before, staked, winnings)
		}
		for _, e := range entries {
			w := Winnings(o, e)
			m := int64(Multiplier(o, e.ID))
			if w != 0 && w != e.Amount*(m+1) {
				t.Fatalf("winnings %d for %s inconsistent with multiplier %d", w, e.ID, m)
			}
		}
	})
}
