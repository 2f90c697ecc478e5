// Package roulette implements the European single-zero roulette rules:
// spin outcomes, bet identifiers, payouts, bet policies and the per-round bet ledger.
package roulette

import "fmt"

// Color is the pocket color of a wheel number.
type Color string

const (
	ColorRed   Color = "red"
	ColorBlack Color = "black"
	ColorGreen Color = "green"
)

// MaxNumber is the highest number on a single-zero wheel.
const MaxNumber = 36

// redNumbers is the fixed set of red pockets. Every other non-zero pocket is black.
var redNumbers = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true,
	12: true, 14: true, 16: true, 18: true, 19: true,
	21: true, 23: true, 25: true, 27: true, 30: true,
	32: true, 34: true, 36: true,
}

// Outcome is a single spin result.
type Outcome struct {
	Number int   `json:"number"`
	Color  Color `json:"color"`
}

// ColorOf returns the pocket color for a wheel number.
func ColorOf(number int) Color {
	if number == 0 {
		return ColorGreen
	}
	if redNumbers[number] {
		return ColorRed
	}
	return ColorBlack
}

// NewOutcome builds the outcome for a wheel number, deriving its color.
func NewOutcome(number int) (Outcome, error) {
	if number < 0 || number > MaxNumber {
		return Outcome{}, fmt.Errorf("number %d out of range 0-%d", number, MaxNumber)
	}
	return Outcome{Number: number, Color: ColorOf(number)}, nil
}

// MustOutcome is NewOutcome for numbers known to be valid.
func MustOutcome(number int) Outcome {
	o, err := NewOutcome(number)
	if err != nil {
		panic(err)
	}
	return o
}

func (o Outcome) String() string {
	return fmt.Sprintf("%d %s", o.Number, o.Color)
}
