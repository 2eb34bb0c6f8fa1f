package poker

import (
	"math/bits"
	"strings"
)

// BoardMask is a 52-bit set of cards, one bit per card integer.
type BoardMask uint64

// BoardMaskFrom builds a mask from a set of cards.
func BoardMaskFrom(cards ...Card) BoardMask {
	var m BoardMask
	for _, c := range cards {
		m |= c.Mask()
	}
	return m
}

// Intersects reports whether the two masks share any card.
func (m BoardMask) Intersects(other BoardMask) bool {
	return m&other != 0
}

// Contains reports whether the mask includes the given card.
func (m BoardMask) Contains(c Card) bool {
	return m&c.Mask() != 0
}

// With returns the mask with the given card added.
func (m BoardMask) With(c Card) BoardMask {
	return m | c.Mask()
}

// Count returns the number of cards in the mask.
func (m BoardMask) Count() int {
	return bits.OnesCount64(uint64(m))
}

// Cards expands the mask back into a sorted card slice.
func (m BoardMask) Cards() []Card {
	cards := make([]Card, 0, m.Count())
	for v := uint64(m); v != 0; v &= v - 1 {
		cards = append(cards, Card(bits.TrailingZeros64(v)))
	}
	return cards
}

// String renders the mask cards in card-integer order, e.g. "2cQsAs".
func (m BoardMask) String() string {
	var sb strings.Builder
	for _, c := range m.Cards() {
		sb.WriteString(c.String())
	}
	return sb.String()
}
