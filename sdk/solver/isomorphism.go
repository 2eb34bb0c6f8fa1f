package solver

import (
	"github.com/lox/postflop/poker"
	"github.com/lox/postflop/sdk/ranges"
)

// IsomorphismTable maps each abstraction deal to per-suit offsets marking
// redundant suits, plus the hand-index permutations that undo a suit swap.
//
// Row 0 covers the initial board; rows 1..52 cover the board plus one chance
// card (deal = card+1). Two-card deals never query the table because the
// river chance node is the last one.
type IsomorphismTable struct {
	offsets [1 + poker.NumCards][poker.NumSuits]int

	// permutations[player][s1][s2] maps hand index to the index of the
	// suit-swapped combo, or itself when the swap leaves the range.
	permutations [2][poker.NumSuits][poker.NumSuits][]int
}

// NewIsomorphismTable precomputes suit offsets for the initial board and
// every one-card extension, and the suit-swap permutations of both ranges.
func NewIsomorphismTable(initialBoard []poker.Card, playerRanges [2][]ranges.PrivateCards) *IsomorphismTable {
	t := &IsomorphismTable{}

	t.offsets[0] = suitOffsets(colorHash(initialBoard))
	for card := 0; card < poker.NumCards; card++ {
		t.offsets[card+1] = suitOffsets(colorHash(initialBoard, poker.Card(card)))
	}

	for player, playerRange := range playerRanges {
		index := make(map[int]int, len(playerRange))
		for i, combo := range playerRange {
			index[combo.Hash()] = i
		}
		for s1 := uint8(0); s1 < poker.NumSuits; s1++ {
			for s2 := uint8(0); s2 < poker.NumSuits; s2++ {
				if s1 == s2 {
					continue
				}
				perm := make([]int, len(playerRange))
				for i, combo := range playerRange {
					swapped := ranges.NewPrivateCards(
						combo.Card1.SwapSuit(s1, s2),
						combo.Card2.SwapSuit(s1, s2),
						combo.Weight,
					)
					if j, ok := index[swapped.Hash()]; ok {
						perm[i] = j
					} else {
						perm[i] = i
					}
				}
				t.permutations[player][s1][s2] = perm
			}
		}
	}
	return t
}

// colorHash fingerprints the suits of the public cards, including any extra
// chance cards extending the board.
func colorHash(board []poker.Card, extra ...poker.Card) [poker.NumSuits]uint16 {
	var hash [poker.NumSuits]uint16
	for _, c := range board {
		hash[c.Suit()] |= 1 << c.Rank()
	}
	for _, c := range extra {
		hash[c.Suit()] |= 1 << c.Rank()
	}
	return hash
}

// suitOffsets marks each suit with the distance to the lowest equivalent
// suit, or 0 when the suit is canonical.
func suitOffsets(hash [poker.NumSuits]uint16) [poker.NumSuits]int {
	var offsets [poker.NumSuits]int
	for s := 1; s < poker.NumSuits; s++ {
		for j := 0; j < s; j++ {
			if hash[j] == hash[s] {
				offsets[s] = j - s
				break
			}
		}
	}
	return offsets
}

// Offset returns the suit offset for the given deal, 0 meaning canonical
// and negative meaning "reuse the suit offset steps lower".
func (t *IsomorphismTable) Offset(deal int, suit uint8) int {
	return t.offsets[deal][suit]
}

// ExchangeColor permutes a per-hand vector in place so values indexed under
// suit s1 combos move to their s2-swapped combos and vice versa.
func (t *IsomorphismTable) ExchangeColor(values []float64, player int, s1, s2 uint8) {
	perm := t.permutations[player][s1][s2]
	for i, j := range perm {
		if j > i {
			values[i], values[j] = values[j], values[i]
		}
	}
}

// Permutation exposes the hand-index mapping for a suit swap.
func (t *IsomorphismTable) Permutation(player int, s1, s2 uint8) []int {
	return t.permutations[player][s1][s2]
}
