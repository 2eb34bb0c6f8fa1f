package ranges

// PrivateCardsManager holds both players' fixed ranges and answers
// cross-player combo lookups by hand index.
type PrivateCardsManager struct {
	ranges  [2][]PrivateCards
	indexes [2]map[int]int
}

// NewPrivateCardsManager indexes the two ranges. Range order is fixed for
// the whole run.
func NewPrivateCardsManager(p0, p1 []PrivateCards) *PrivateCardsManager {
	m := &PrivateCardsManager{ranges: [2][]PrivateCards{p0, p1}}
	for player, playerRange := range m.ranges {
		index := make(map[int]int, len(playerRange))
		for i, combo := range playerRange {
			index[combo.Hash()] = i
		}
		m.indexes[player] = index
	}
	return m
}

// PreflopCards returns the player's range.
func (m *PrivateCardsManager) PreflopCards(player int) []PrivateCards {
	return m.ranges[player]
}

// IndexToOtherPlayer translates fromPlayer's hand index into toPlayer's
// index for the card-identical combo, or -1 when toPlayer's range does not
// contain it.
func (m *PrivateCardsManager) IndexToOtherPlayer(fromPlayer, toPlayer, index int) int {
	combo := m.ranges[fromPlayer][index]
	if to, ok := m.indexes[toPlayer][combo.Hash()]; ok {
		return to
	}
	return -1
}
