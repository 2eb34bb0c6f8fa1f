package ranges

import (
	"sort"
	"sync"

	"github.com/lox/postflop/poker"
)

// Compairer ranks a two-card holding against a five-card board.
// Lower ranks are stronger.
type Compairer interface {
	GetRank(c1, c2 poker.Card, board []poker.Card) int
}

// RiverCombs is one surviving combo on a final board, with its hand rank and
// the index it occupies in the player's full range.
type RiverCombs struct {
	Cards          PrivateCards
	Rank           int
	ReachProbIndex int
}

// RiverRangeManager caches each player's blocker-filtered river combos per
// final board, sorted weakest hand first. Safe for concurrent use.
type RiverRangeManager struct {
	compairer Compairer

	mu     sync.Mutex
	caches [2]map[poker.BoardMask][]RiverCombs
}

// NewRiverRangeManager builds a manager around the given evaluator.
func NewRiverRangeManager(compairer Compairer) *RiverRangeManager {
	return &RiverRangeManager{
		compairer: compairer,
		caches: [2]map[poker.BoardMask][]RiverCombs{
			make(map[poker.BoardMask][]RiverCombs),
			make(map[poker.BoardMask][]RiverCombs),
		},
	}
}

// GetRiverCombos returns the player's combos that survive the final board,
// ranked and sorted descending by rank so the weakest hand comes first.
// Results are cached by board mask.
func (m *RiverRangeManager) GetRiverCombos(player int, playerRange []PrivateCards, board poker.BoardMask) []RiverCombs {
	m.mu.Lock()
	if cached, ok := m.caches[player][board]; ok {
		m.mu.Unlock()
		return cached
	}
	m.mu.Unlock()

	boardCards := board.Cards()
	combos := make([]RiverCombs, 0, len(playerRange))
	for i, combo := range playerRange {
		if combo.Intersects(board) {
			continue
		}
		combos = append(combos, RiverCombs{
			Cards:          combo,
			Rank:           m.compairer.GetRank(combo.Card1, combo.Card2, boardCards),
			ReachProbIndex: i,
		})
	}
	sort.SliceStable(combos, func(i, j int) bool {
		return combos[i].Rank > combos[j].Rank
	})

	m.mu.Lock()
	m.caches[player][board] = combos
	m.mu.Unlock()
	return combos
}
