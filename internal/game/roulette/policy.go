package roulette

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// Decision is the result of a combination check.
type Decision struct {
	Allowed  bool
	Reason   string
	Conflict BetID
}

var opposites = map[EvenMoney]EvenMoney{
	EvenMoneyRed:   EvenMoneyBlack,
	EvenMoneyBlack: EvenMoneyRed,
	EvenMoneyEven:  EvenMoneyOdd,
	EvenMoneyOdd:   EvenMoneyEven,
	EvenMoneyLow:   EvenMoneyHigh,
	EvenMoneyHigh:  EvenMoneyLow,
}

// CheckCombination decides whether candidate may join the player's existing bets for
// the round. Opposite even-money bets cannot be held together, and column bets
// cannot be mixed with dozen bets. Everything else stacks freely.
func CheckCombination(candidate BetID, existing []BetID) Decision {
	for _, other := range existing {
		if conflicts(candidate, other) {
			return Decision{
				Allowed:  false,
				Reason:   fmt.Sprintf("%s cannot be combined with %s in the same round", candidate, other),
				Conflict: other,
			}
		}
	}
	return Decision{Allowed: true}
}

func conflicts(a, b BetID) bool {
	if a.Family == FamilyEvenMoney && b.Family == FamilyEvenMoney {
		return opposites[a.Kind] == b.Kind
	}
	return (a.Family == FamilyColumn && b.Family == FamilyDozen) ||
		(a.Family == FamilyDozen && b.Family == FamilyColumn)
}

// StakeLimits holds the maximum cumulative stake per bet identifier, by family.
type StakeLimits map[Family]int64

// DefaultStakeLimits returns the standard table ceilings.
func DefaultStakeLimits() StakeLimits {
	return StakeLimits{
		FamilyStraight:  10_000,
		FamilySplit:     20_000,
		FamilyStreet:    30_000,
		FamilyTrio:      30_000,
		FamilyCorner:    40_000,
		FamilyBasket:    40_000,
		FamilyLine:      60_000,
		FamilyDozen:     50_000,
		FamilyColumn:    50_000,
		FamilyEvenMoney: 100_000,
	}
}

// LimitDecision is the result of a stake limit check. Max is 0 when the family
// has no ceiling.
type LimitDecision struct {
	Allowed  bool
	Current  int64
	Proposed int64
	Max      int64
	Reason   string
}

// Check validates adding amount to the current stake on id.
func (l StakeLimits) Check(id BetID, current, amount int64) LimitDecision {
	proposed := current + amount
	ceiling, ok := l[id.Family]
	if !ok || ceiling <= 0 {
		log.Warn().
			Str("family", string(id.Family)).
			Str("bet", id.String()).
			Msg("No stake ceiling configured for bet family")
		return LimitDecision{Allowed: true, Current: current, Proposed: proposed}
	}
	if proposed > ceiling {
		return LimitDecision{
			Allowed:  false,
			Current:  current,
			Proposed: proposed,
			Max:      ceiling,
			Reason:   fmt.Sprintf("stake on %s would be %d, maximum is %d", id, proposed, ceiling),
		}
	}
	return LimitDecision{Allowed: true, Current: current, Proposed: proposed, Max: ceiling}
}

// Merge returns a copy of l with the given overrides applied.
func (l StakeLimits) Merge(overrides map[string]int64) StakeLimits {
	out := make(StakeLimits, len(l)+len(overrides))
	for f, v := range l {
		out[f] = v
	}
	for f, v := range overrides {
		out[Family(f)] = v
	}
	return out
}
