package roulette

import (
	"slices"

	"github.com/rs/zerolog/log"
)

// Payout multipliers (profit per unit staked) on a single-zero wheel.
const (
	MultiplierStraight  = 35
	MultiplierSplit     = 17
	MultiplierStreet    = 11
	MultiplierTrio      = 11
	MultiplierCorner    = 8
	MultiplierBasket    = 8
	MultiplierLine      = 5
	MultiplierDozen     = 2
	MultiplierColumn    = 2
	MultiplierEvenMoney = 1
)

// BetEntry is an amount staked on one bet identifier.
type BetEntry struct {
	ID     BetID `json:"id"`
	Amount int64 `json:"amount"`
}

// Multiplier returns the payout multiplier of a bet for the given outcome,
// 0 for a losing bet. Malformed identifiers always pay 0 and are logged; they
// never cause a panic.
func Multiplier(o Outcome, id BetID) int {
	switch id.Family {
	case FamilyStraight, FamilySplit, FamilyStreet, FamilyTrio, FamilyCorner, FamilyBasket, FamilyLine:
		if id.count != arity[id.Family] {
			return malformed(id, "wrong number count")
		}
		if !slices.Contains(id.nums[:id.count], o.Number) {
			return 0
		}
		return insideMultiplier(id.Family)
	case FamilyDozen:
		if id.Index < 1 || id.Index > 3 {
			return malformed(id, "dozen index out of range")
		}
		if o.Number == 0 {
			return 0
		}
		if (o.Number-1)/12+1 == id.Index {
			return MultiplierDozen
		}
		return 0
	case FamilyColumn:
		if id.Index < 1 || id.Index > 3 {
			return malformed(id, "column index out of range")
		}
		if o.Number == 0 {
			return 0
		}
		if col(o.Number)+1 == id.Index {
			return MultiplierColumn
		}
		return 0
	case FamilyEvenMoney:
		if !id.Kind.valid() {
			return malformed(id, "unknown even-money kind")
		}
		if o.Number == 0 {
			return 0
		}
		if evenMoneyWins(id.Kind, o) {
			return MultiplierEvenMoney
		}
		return 0
	default:
		return malformed(id, "unknown bet family")
	}
}

func insideMultiplier(f Family) int {
	switch f {
	case FamilyStraight:
		return MultiplierStraight
	case FamilySplit:
		return MultiplierSplit
	case FamilyStreet:
		return MultiplierStreet
	case FamilyTrio:
		return MultiplierTrio
	case FamilyCorner:
		return MultiplierCorner
	case FamilyBasket:
		return MultiplierBasket
	case FamilyLine:
		return MultiplierLine
	}
	return 0
}

func evenMoneyWins(kind EvenMoney, o Outcome) bool {
	switch kind {
	case EvenMoneyRed:
		return o.Color == ColorRed
	case EvenMoneyBlack:
		return o.Color == ColorBlack
	case EvenMoneyEven:
		return o.Number%2 == 0
	case EvenMoneyOdd:
		return o.Number%2 == 1
	case EvenMoneyLow:
		return o.Number >= 1 && o.Number <= 18
	case EvenMoneyHigh:
		return o.Number >= 19 && o.Number <= MaxNumber
	}
	return false
}

func malformed(id BetID, reason string) int {
	log.Warn().
		Str("signal", "data_integrity").
		Str("family", string(id.Family)).
		Str("bet", id.String()).
		Str("reason", reason).
		Msg("Malformed bet identifier settled as a loss")
	return 0
}

// Winnings returns the total credited for a bet: the stake plus profit when the
// bet wins, 0 when it loses.
func Winnings(o Outcome, e BetEntry) int64 {
	m := Multiplier(o, e.ID)
	if m == 0 || e.Amount <= 0 {
		return 0
	}
	return e.Amount + e.Amount*int64(m)
}

// SettleEntries computes the total staked and total winnings of a set of entries.
func SettleEntries(o Outcome, entries []BetEntry) (staked, winnings int64) {
	for _, e := range entries {
		staked += e.Amount
		winnings += Winnings(o, e)
	}
	return staked, winnings
}
