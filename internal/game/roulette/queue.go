package roulette

import (
	crand "crypto/rand"
	"math/rand/v2"
	"sync"
)

// DefaultQueueSize is the number of outcomes kept ready ahead of the wheel.
const DefaultQueueSize = 20

// ResultQueue keeps a buffer of pre-generated outcomes so a spin never waits on
// the random source. Outcomes leave the queue in the order they were generated,
// which makes upcoming results observable through Peek without changing them.
type ResultQueue struct {
	mu      sync.Mutex
	min     int
	rng     *rand.Rand
	pending []Outcome
}

// NewResultQueue creates a queue seeded from the operating system entropy source.
func NewResultQueue(size int) *ResultQueue {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("roulette: cannot seed result queue: " + err.Error())
	}
	return NewSeededResultQueue(size, seed)
}

// NewSeededResultQueue creates a queue with a fixed seed (replay and tests).
func NewSeededResultQueue(size int, seed [32]byte) *ResultQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &ResultQueue{
		min: size,
		rng: rand.New(rand.NewChaCha8(seed)),
	}
	q.Fill()
	return q
}

// Generate draws one outcome uniformly from 0-36.
func (q *ResultQueue) Generate() Outcome {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generateLocked()
}

func (q *ResultQueue) generateLocked() Outcome {
	n := q.rng.IntN(MaxNumber + 1)
	return Outcome{Number: n, Color: ColorOf(n)}
}

// Fill tops the buffer up to the configured minimum.
func (q *ResultQueue) Fill() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fillLocked(q.min)
}

func (q *ResultQueue) fillLocked(size int) {
	for len(q.pending) < size {
		q.pending = append(q.pending, q.generateLocked())
	}
}

// Dequeue removes and returns the oldest outcome, then refills.
func (q *ResultQueue) Dequeue() Outcome {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.fillLocked(1)
	next := q.pending[0]
	q.pending = q.pending[1:]
	q.fillLocked(q.min)
	return next
}

// Peek returns a copy of the next count outcomes without consuming them.
func (q *ResultQueue) Peek(count int) []Outcome {
	if count <= 0 {
		return []Outcome{}
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	q.fillLocked(count)
	out := make([]Outcome, count)
	copy(out, q.pending[:count])
	return out
}

// Len returns the number of buffered outcomes.
func (q *ResultQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
