package roulette

// BetLedger holds one player's stakes for a round, keyed by bet identifier.
// Entries keep the order in which each identifier was first staked.
type BetLedger struct {
	order  []BetID
	stakes map[BetID]int64
}

// NewBetLedger creates an empty ledger.
func NewBetLedger() *BetLedger {
	return &BetLedger{stakes: make(map[BetID]int64)}
}

// NewBetLedgerFrom builds a ledger from entries, accumulating duplicates.
func NewBetLedgerFrom(entries []BetEntry) *BetLedger {
	l := NewBetLedger()
	for _, e := range entries {
		l.Add(e.ID, e.Amount)
	}
	return l
}

// Add increases the stake on id and returns the new stake.
func (l *BetLedger) Add(id BetID, amount int64) int64 {
	if _, ok := l.stakes[id]; !ok {
		l.order = append(l.order, id)
	}
	l.stakes[id] += amount
	return l.stakes[id]
}

// Remove decreases the stake on id, dropping the entry when it reaches zero.
func (l *BetLedger) Remove(id BetID, amount int64) {
	cur, ok := l.stakes[id]
	if !ok {
		return
	}
	cur -= amount
	if cur > 0 {
		l.stakes[id] = cur
		return
	}
	delete(l.stakes, id)
	for i, o := range l.order {
		if o == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Stake returns the current stake on id.
func (l *BetLedger) Stake(id BetID) int64 {
	return l.stakes[id]
}

// Total returns the sum of all stakes.
func (l *BetLedger) Total() int64 {
	var total int64
	for _, v := range l.stakes {
		total += v
	}
	return total
}

// Len returns the number of distinct identifiers staked.
func (l *BetLedger) Len() int {
	return len(l.order)
}

// IDs returns the staked identifiers in placement order.
func (l *BetLedger) IDs() []BetID {
	out := make([]BetID, len(l.order))
	copy(out, l.order)
	return out
}

// Entries returns the stakes in placement order.
func (l *BetLedger) Entries() []BetEntry {
	out := make([]BetEntry, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, BetEntry{ID: id, Amount: l.stakes[id]})
	}
	return out
}

// Map returns the stakes keyed by canonical bet key.
func (l *BetLedger) Map() map[string]int64 {
	out := make(map[string]int64, len(l.stakes))
	for id, v := range l.stakes {
		out[id.String()] = v
	}
	return out
}

// Clone returns an independent copy.
func (l *BetLedger) Clone() *BetLedger {
	return NewBetLedgerFrom(l.Entries())
}

// Reset empties the ledger.
func (l *BetLedger) Reset() {
	l.order = nil
	l.stakes = make(map[BetID]int64)
}
