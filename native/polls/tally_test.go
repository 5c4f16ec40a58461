package polls

import (
	"math/big"
	"testing"
)

func tallyOf(values ...int64) Tally {
	weights := make([]*big.Int, len(values))
	for i, v := range values {
		weights[i] = big.NewInt(v)
	}
	return tallyFromWeights(weights)
}

func TestWinningOption(t *testing.T) {
	cases := []struct {
		name      string
		tally     Tally
		winner    uint8
		hasWinner bool
	}{
		{"no votes", tallyOf(0, 0, 0, 0), 0, false},
		{"three way tie", tallyOf(5, 5, 3, 5), 0, false},
		{"late leader", tallyOf(3, 3, 5), 2, true},
		{"single leader", tallyOf(0, 0, 20, 0), 2, true},
		{"first wins", tallyOf(9, 1), 0, true},
		{"leading zero then value", tallyOf(0, 4), 1, true},
		{"tie below leader", tallyOf(1, 1, 0), 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			winner, ok := tc.tally.WinningOption()
			if ok != tc.hasWinner {
				t.Fatalf("expected hasWinner=%v, got %v", tc.hasWinner, ok)
			}
			if ok && winner != tc.winner {
				t.Fatalf("expected winner %d, got %d", tc.winner, winner)
			}
		})
	}
}

func TestTallyAddSaturates(t *testing.T) {
	tally := NewTally(2)
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	tally.Add(0, huge)
	if tally[0].ToBig().Cmp(MaxWeight()) != 0 {
		t.Fatalf("expected weight clamped to max, got %s", tally[0].ToBig())
	}
	tally.Add(0, big.NewInt(1))
	if tally[0].ToBig().Cmp(MaxWeight()) != 0 {
		t.Fatalf("expected saturation, got %s", tally[0].ToBig())
	}
	tally.Add(1, big.NewInt(-5))
	tally.Add(5, big.NewInt(5))
	if tally[1].Sign() != 0 {
		t.Fatalf("negative weight must not be credited")
	}
}
