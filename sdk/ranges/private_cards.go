package ranges

import (
	"fmt"

	"github.com/lox/postflop/poker"
)

// PrivateCards is one weighted hole-card combo. Card1 is always the lower
// card integer so a combo has exactly one representation.
type PrivateCards struct {
	Card1  poker.Card
	Card2  poker.Card
	Weight float64
}

// NewPrivateCards builds a combo, normalizing card order.
func NewPrivateCards(c1, c2 poker.Card, weight float64) PrivateCards {
	if c1 > c2 {
		c1, c2 = c2, c1
	}
	return PrivateCards{Card1: c1, Card2: c2, Weight: weight}
}

// Hash returns a key unique per card pair, independent of weight.
func (p PrivateCards) Hash() int {
	return int(p.Card1)*poker.NumCards + int(p.Card2)
}

// Mask returns the two-card board mask of the combo.
func (p PrivateCards) Mask() poker.BoardMask {
	return p.Card1.Mask() | p.Card2.Mask()
}

// Intersects reports whether the combo shares a card with the mask.
func (p PrivateCards) Intersects(board poker.BoardMask) bool {
	return p.Mask().Intersects(board)
}

// String renders the combo with the higher card first, e.g. "AsKs".
func (p PrivateCards) String() string {
	return p.Card2.String() + p.Card1.String()
}

// BuildRange validates combos and strips those intersecting the initial
// board. Duplicate combos are a configuration error. The surviving order
// defines the player's hand indexes for the whole run.
func BuildRange(combos []PrivateCards, initialBoard poker.BoardMask) ([]PrivateCards, error) {
	seen := make(map[int]bool, len(combos))
	out := make([]PrivateCards, 0, len(combos))
	for _, combo := range combos {
		if combo.Card1 == combo.Card2 {
			return nil, fmt.Errorf("invalid combo %s: identical cards", combo)
		}
		if seen[combo.Hash()] {
			return nil, fmt.Errorf("duplicate combo %s in range", combo)
		}
		seen[combo.Hash()] = true
		if combo.Intersects(initialBoard) {
			continue
		}
		out = append(out, combo)
	}
	return out, nil
}

// ReachProbs returns the raw combo weights in hand-index order.
func ReachProbs(combos []PrivateCards) []float64 {
	probs := make([]float64, len(combos))
	for i, combo := range combos {
		probs[i] = combo.Weight
	}
	return probs
}
