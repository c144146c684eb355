// Package split assigns records to the train or dev partition.
//
// Each position of the canonical order receives an independent Bernoulli
// draw from a PCG source seeded by the caller, so the same seed, size and
// ratio always reproduce the same membership.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/bits-and-blooms/bitset"
)

// ErrInvalidRatio is returned for a negative or NaN train ratio.
var ErrInvalidRatio = errors.New("invalid train ratio")

// Membership records the partition of every position in the canonical order.
type Membership struct {
	train *bitset.BitSet
	n     int
	ratio float64
}

// Assign draws membership for n records. A ratio of 1 or more puts every
// record in train and a ratio of 0 puts every record in dev.
func Assign(n int, trainRatio float64, seed uint64) (*Membership, error) {
	if math.IsNaN(trainRatio) || trainRatio < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRatio, trainRatio)
	}
	if n < 0 {
		return nil, fmt.Errorf("record count must not be negative, got %d", n)
	}

	m := &Membership{train: bitset.New(uint(n)), n: n, ratio: trainRatio}
	switch {
	case trainRatio >= 1:
		m.train.FlipRange(0, uint(n))
	case trainRatio == 0:
	default:
		rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		for i := 0; i < n; i++ {
			if rng.Float64() < trainRatio {
				m.train.Set(uint(i))
			}
		}
	}
	return m, nil
}

// FromBools builds a membership from explicit decisions. It is mainly
// useful for tests and for replaying a recorded split.
func FromBools(isTrain []bool) *Membership {
	m := &Membership{train: bitset.New(uint(len(isTrain))), n: len(isTrain), ratio: math.NaN()}
	for i, t := range isTrain {
		if t {
			m.train.Set(uint(i))
		}
	}
	return m
}

// Len returns the number of positions.
func (m *Membership) Len() int {
	return m.n
}

// IsTrain reports whether position i belongs to train.
func (m *Membership) IsTrain(i int) bool {
	return m.train.Test(uint(i))
}

// TrainCount returns the number of train positions.
func (m *Membership) TrainCount() int {
	return int(m.train.Count())
}

// DevCount returns the number of dev positions.
func (m *Membership) DevCount() int {
	return m.n - m.TrainCount()
}

// Bools expands the membership into one flag per position.
func (m *Membership) Bools() []bool {
	out := make([]bool, m.n)
	for i, ok := m.train.NextSet(0); ok && int(i) < m.n; i, ok = m.train.NextSet(i + 1) {
		out[i] = true
	}
	return out
}

// Capacities returns provisional store sizes for the two partitions. In the
// degenerate modes the empty partition gets 0. Otherwise the sizes are the
// exact counts, which stores may still outgrow.
func (m *Membership) Capacities() (train, dev int) {
	switch {
	case m.ratio >= 1:
		return m.n, 0
	case m.ratio == 0:
		return 0, m.n
	default:
		return m.TrainCount(), m.DevCount()
	}
}
