package roulette

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Family is the kind of roulette bet.
type Family string

const (
	FamilyStraight  Family = "straight"
	FamilySplit     Family = "split"
	FamilyStreet    Family = "street"
	FamilyCorner    Family = "corner"
	FamilyLine      Family = "line"
	FamilyDozen     Family = "dozen"
	FamilyColumn    Family = "column"
	FamilyTrio      Family = "trio"
	FamilyBasket    Family = "basket"
	FamilyEvenMoney Family = "even_money"
)

// EvenMoney is the sub-type of an even-money bet.
type EvenMoney string

const (
	EvenMoneyRed   EvenMoney = "red"
	EvenMoneyBlack EvenMoney = "black"
	EvenMoneyEven  EvenMoney = "even"
	EvenMoneyOdd   EvenMoney = "odd"
	EvenMoneyLow   EvenMoney = "low"
	EvenMoneyHigh  EvenMoney = "high"
)

func (k EvenMoney) valid() bool {
	switch k {
	case EvenMoneyRed, EvenMoneyBlack, EvenMoneyEven, EvenMoneyOdd, EvenMoneyLow, EvenMoneyHigh:
		return true
	}
	return false
}

// arity is the exact count of covered numbers for the inside bet families.
var arity = map[Family]int{
	FamilyStraight: 1,
	FamilySplit:    2,
	FamilyStreet:   3,
	FamilyTrio:     3,
	FamilyCorner:   4,
	FamilyBasket:   4,
	FamilyLine:     6,
}

const evenMoneyPrefix = "even_money_"

// ErrInvalidBetKey is wrapped by every ParseError.
var ErrInvalidBetKey = errors.New("invalid bet key")

// ParseError describes why a bet key was rejected.
type ParseError struct {
	Key    string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid bet key %q: %s", e.Key, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrInvalidBetKey }

// BetID identifies a bet on the layout. It is comparable and can be used as a map key.
//
// Inside bets carry their covered numbers in ascending order; dozen and column bets
// carry Index (1-3); even-money bets carry Kind.
type BetID struct {
	Family Family
	Kind   EvenMoney
	Index  int
	nums   [6]int
	count  int
}

// Numbers returns the covered numbers of an inside bet.
func (b BetID) Numbers() []int {
	n := b.count
	if n < 0 || n > len(b.nums) {
		n = 0
	}
	out := make([]int, n)
	copy(out, b.nums[:n])
	return out
}

// String returns the canonical wire/storage encoding of the bet.
func (b BetID) String() string {
	switch b.Family {
	case FamilyEvenMoney:
		return evenMoneyPrefix + string(b.Kind)
	case FamilyDozen, FamilyColumn:
		return string(b.Family) + "_" + strconv.Itoa(b.Index)
	case FamilyBasket:
		return string(FamilyBasket)
	}
	var sb strings.Builder
	sb.WriteString(string(b.Family))
	for _, n := range b.Numbers() {
		sb.WriteByte('_')
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String()
}

// IsZero reports whether b is the zero BetID.
func (b BetID) IsZero() bool {
	return b == BetID{}
}

// Straight returns the single-number bet on n.
func Straight(n int) BetID {
	id := BetID{Family: FamilyStraight, count: 1}
	id.nums[0] = n
	return id
}

// Dozen returns the dozen bet with index 1-3.
func Dozen(i int) BetID { return BetID{Family: FamilyDozen, Index: i} }

// Column returns the column bet with index 1-3.
func Column(i int) BetID { return BetID{Family: FamilyColumn, Index: i} }

// Even returns the even-money bet of the given kind.
func Even(kind EvenMoney) BetID { return BetID{Family: FamilyEvenMoney, Kind: kind} }

// Basket returns the 0-1-2-3 bet.
func Basket() BetID { return withNumbers(FamilyBasket, []int{0, 1, 2, 3}) }

func withNumbers(f Family, nums []int) BetID {
	id := BetID{Family: f, count: len(nums)}
	copy(id.nums[:], nums)
	return id
}

// MustParseBetID parses a key that is known to be valid.
func MustParseBetID(key string) BetID {
	id, err := ParseBetID(key)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseBetID parses a canonical bet key such as "straight_17", "corner_1_2_4_5",
// "dozen_2" or "even_money_red". Parsing is strict: unknown families, wrong arity,
// out of range numbers and combinations that do not form the named shape on the
// layout are rejected.
func ParseBetID(key string) (BetID, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return BetID{}, &ParseError{Key: key, Reason: "empty key"}
	}

	if rest, ok := strings.CutPrefix(key, evenMoneyPrefix); ok {
		kind := EvenMoney(rest)
		if !kind.valid() {
			return BetID{}, &ParseError{Key: key, Reason: "unknown even-money kind"}
		}
		return Even(kind), nil
	}

	parts := strings.Split(key, "_")
	family := Family(parts[0])
	args := parts[1:]

	switch family {
	case FamilyDozen, FamilyColumn:
		if len(args) != 1 {
			return BetID{}, &ParseError{Key: key, Reason: "expected one index"}
		}
		idx, err := strconv.Atoi(args[0])
		if err != nil || idx < 1 || idx > 3 {
			return BetID{}, &ParseError{Key: key, Reason: "index must be 1, 2 or 3"}
		}
		return BetID{Family: family, Index: idx}, nil
	case FamilyBasket:
		if len(args) == 0 {
			return Basket(), nil
		}
	case FamilyStraight, FamilySplit, FamilyStreet, FamilyTrio, FamilyCorner, FamilyLine:
	default:
		return BetID{}, &ParseError{Key: key, Reason: "unknown bet family"}
	}

	want := arity[family]
	if len(args) != want {
		return BetID{}, &ParseError{Key: key, Reason: fmt.Sprintf("%s covers exactly %d numbers, got %d", family, want, len(args))}
	}

	nums := make([]int, 0, len(args))
	for _, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return BetID{}, &ParseError{Key: key, Reason: fmt.Sprintf("%q is not a number", a)}
		}
		if n < 0 || n > MaxNumber {
			return BetID{}, &ParseError{Key: key, Reason: fmt.Sprintf("number %d out of range", n)}
		}
		nums = append(nums, n)
	}
	slices.Sort(nums)
	if len(slices.Compact(slices.Clone(nums))) != len(nums) {
		return BetID{}, &ParseError{Key: key, Reason: "duplicate numbers"}
	}
	if !validShape(family, nums) {
		return BetID{}, &ParseError{Key: key, Reason: fmt.Sprintf("numbers do not form a %s on the layout", family)}
	}
	return withNumbers(family, nums), nil
}

// row and col locate a non-zero number on the three-column layout.
func row(n int) int { return (n - 1) / 3 }
func col(n int) int { return (n - 1) % 3 }

// validShape checks sorted numbers against the layout geometry of the family.
func validShape(f Family, nums []int) bool {
	switch f {
	case FamilyStraight:
		return true
	case FamilySplit:
		a, b := nums[0], nums[1]
		if a == 0 {
			return b >= 1 && b <= 3
		}
		if row(a) == row(b) {
			return b-a == 1
		}
		return b-a == 3
	case FamilyStreet:
		a := nums[0]
		return a >= 1 && col(a) == 0 && nums[1] == a+1 && nums[2] == a+2
	case FamilyTrio:
		return slices.Equal(nums, []int{0, 1, 2}) || slices.Equal(nums, []int{0, 2, 3})
	case FamilyCorner:
		a := nums[0]
		return a >= 1 && col(a) != 2 && nums[1] == a+1 && nums[2] == a+3 && nums[3] == a+4
	case FamilyBasket:
		return slices.Equal(nums, []int{0, 1, 2, 3})
	case FamilyLine:
		a := nums[0]
		if a < 1 || col(a) != 0 {
			return false
		}
		for i, n := range nums {
			if n != a+i {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalText encodes the bet with its canonical key.
func (b BetID) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText parses a canonical key strictly.
func (b *BetID) UnmarshalText(text []byte) error {
	id, err := ParseBetID(string(text))
	if err != nil {
		return err
	}
	*b = id
	return nil
}
