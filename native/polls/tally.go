package polls

import (
	"math/big"

	"github.com/holiman/uint256"
)

// maxWeight is the largest weight a tally entry can hold (2^128-1).
var maxWeight = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// MaxWeight returns the saturation bound of a tally entry.
func MaxWeight() *big.Int { return maxWeight.ToBig() }

// Tally accumulates voter weight per option; the index is the option id.
type Tally []uint256.Int

// NewTally returns a zeroed tally for the given number of options.
func NewTally(options uint8) Tally {
	return make(Tally, options)
}

// Add credits weight to option, saturating at MaxWeight.
func (t Tally) Add(option uint8, weight *big.Int) {
	if int(option) >= len(t) {
		return
	}
	w := clampWeight(weight)
	sum, overflow := new(uint256.Int).AddOverflow(&t[option], w)
	if overflow || sum.Gt(maxWeight) {
		sum.Set(maxWeight)
	}
	t[option] = *sum
}

// Sum returns the total weight across all options.
func (t Tally) Sum() *big.Int {
	total := new(big.Int)
	for i := range t {
		total.Add(total, t[i].ToBig())
	}
	return total
}

// Weights returns the tally as big integers.
func (t Tally) Weights() []*big.Int {
	out := make([]*big.Int, len(t))
	for i := range t {
		out[i] = t[i].ToBig()
	}
	return out
}

// WinningOption scans left to right keeping the running maximum. A strictly
// greater value takes the lead and clears the tie flag; a value equal to the
// running maximum sets it. An all-zero tally therefore has no winner.
func (t Tally) WinningOption() (uint8, bool) {
	var (
		max   uint256.Int
		index uint8
		tie   bool
	)
	for i := range t {
		switch t[i].Cmp(&max) {
		case 1:
			max = t[i]
			index = uint8(i)
			tie = false
		case 0:
			tie = true
		}
	}
	if tie {
		return 0, false
	}
	return index, true
}

func clampWeight(weight *big.Int) *uint256.Int {
	if weight == nil || weight.Sign() <= 0 {
		return new(uint256.Int)
	}
	w, overflow := uint256.FromBig(weight)
	if overflow || w.Gt(maxWeight) {
		return new(uint256.Int).Set(maxWeight)
	}
	return w
}

func tallyFromWeights(weights []*big.Int) Tally {
	out := make(Tally, len(weights))
	for i, w := range weights {
		out[i] = *clampWeight(w)
	}
	return out
}
