package loadtest

import (
	"fmt"
	"math/rand"
)

// Strategy selects how a stream derives identifiers from its cursor.
type Strategy string

const (
	// StrategyCyclic walks the pool in order and wraps around.
	StrategyCyclic Strategy = "cyclic"

	// StrategyRandom draws uniformly from the pool using a per-stream source.
	StrategyRandom Strategy = "random"
)

// IdentifierPool is the immutable ordered set 1..N.
type IdentifierPool struct {
	ids []int
}

// NewIdentifierPool builds the pool 1..n.
func NewIdentifierPool(n int) (*IdentifierPool, error) {
	if n < 1 {
		return nil, fmt.Errorf("identifier pool size must be at least 1, got %d", n)
	}
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i + 1
	}
	return &IdentifierPool{ids: ids}, nil
}

// Size returns N.
func (p *IdentifierPool) Size() int {
	return len(p.ids)
}

// At returns pool[i mod N].
func (p *IdentifierPool) At(i int64) int {
	n := int64(len(p.ids))
	idx := i % n
	if idx < 0 {
		idx += n
	}
	return p.ids[idx]
}

// Cursor is a stream-private position in the pool. It only moves forward.
//
// A Cursor is not safe for concurrent use; each stream owns exactly one.
type Cursor struct {
	pool     *IdentifierPool
	strategy Strategy
	rng      *rand.Rand
	pos      int64
}

// NewCursor creates a cursor at position zero. For the random strategy the
// source is seeded from seed+streamID so that streams draw independently and
// a given seed replays the same sequence.
func NewCursor(pool *IdentifierPool, strategy Strategy, seed int64, streamID int) *Cursor {
	c := &Cursor{pool: pool, strategy: strategy}
	if strategy == StrategyRandom {
		c.rng = rand.New(rand.NewSource(seed + int64(streamID)))
	}
	return c
}

// Next returns the identifier for the current position and advances.
func (c *Cursor) Next() int {
	var id int
	if c.rng != nil {
		id = c.pool.At(c.rng.Int63n(int64(c.pool.Size())))
	} else {
		id = c.pool.At(c.pos)
	}
	c.pos++
	return id
}

// Position returns how many identifiers have been handed out.
func (c *Cursor) Position() int64 {
	return c.pos
}
