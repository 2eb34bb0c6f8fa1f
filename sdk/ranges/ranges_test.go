package ranges

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/postflop/internal/evaluator"
	"github.com/lox/postflop/poker"
)

func TestParseRangePairClass(t *testing.T) {
	combos, err := ParseRange("AA")
	require.NoError(t, err)
	assert.Len(t, combos, 6)
	for _, c := range combos {
		assert.Equal(t, uint8(12), c.Card1.Rank())
		assert.Equal(t, uint8(12), c.Card2.Rank())
		assert.Equal(t, 1.0, c.Weight)
	}
}

func TestParseRangeSuitedOffsuit(t *testing.T) {
	suited, err := ParseRange("AKs")
	require.NoError(t, err)
	assert.Len(t, suited, 4)
	for _, c := range suited {
		assert.Equal(t, c.Card1.Suit(), c.Card2.Suit())
	}

	offsuit, err := ParseRange("AKo")
	require.NoError(t, err)
	assert.Len(t, offsuit, 12)
	for _, c := range offsuit {
		assert.NotEqual(t, c.Card1.Suit(), c.Card2.Suit())
	}

	both, err := ParseRange("AK")
	require.NoError(t, err)
	assert.Len(t, both, 16)
}

func TestParseRangeWeights(t *testing.T) {
	combos, err := ParseRange("KK:0.5,QhJh:0.25")
	require.NoError(t, err)
	require.Len(t, combos, 7)
	for _, c := range combos[:6] {
		assert.Equal(t, 0.5, c.Weight)
	}
	assert.Equal(t, 0.25, combos[6].Weight)
	assert.Equal(t, "QhJh", combos[6].String())
}

func TestParseRangeErrors(t *testing.T) {
	_, err := ParseRange("")
	assert.Error(t, err)
	_, err = ParseRange("AX")
	assert.Error(t, err)
	_, err = ParseRange("AKx")
	assert.Error(t, err)
	_, err = ParseRange("AA:-1")
	assert.Error(t, err)
	_, err = ParseRange("AhAh")
	assert.Error(t, err)
}

func TestPrivateCardsNormalization(t *testing.T) {
	cards := poker.MustParseCards("AsKs")
	a := NewPrivateCards(cards[0], cards[1], 1)
	b := NewPrivateCards(cards[1], cards[0], 1)
	assert.Equal(t, a, b)
	assert.True(t, a.Card1 < a.Card2)
	assert.Equal(t, a.Hash(), b.Hash())
	assert.Equal(t, "AsKs", a.String())
}

func TestBuildRangeStripsBoardCombos(t *testing.T) {
	board := poker.BoardMaskFrom(poker.MustParseCards("QsJh2c")...)
	combos := MustParseRange("QQ,77")
	built, err := BuildRange(combos, board)
	require.NoError(t, err)
	// Three QQ combos use the Qs and are stripped.
	assert.Len(t, built, 9)
	for _, c := range built {
		assert.False(t, c.Intersects(board))
	}
}

func TestBuildRangeRejectsDuplicates(t *testing.T) {
	combos := MustParseRange("AhAs,AsAh")
	_, err := BuildRange(combos, 0)
	assert.Error(t, err)
}

func TestReachProbs(t *testing.T) {
	combos := MustParseRange("AhAs:0.5,KhKs:0.25")
	assert.Equal(t, []float64{0.5, 0.25}, ReachProbs(combos))
}

func TestRiverRangeManagerSortsWeakestFirst(t *testing.T) {
	eval := evaluator.New()
	m := NewRiverRangeManager(eval)

	board := poker.BoardMaskFrom(poker.MustParseCards("QsJh2c7d2s")...)
	playerRange := MustParseRange("AhAc,5h5s,KsKh")
	built, err := BuildRange(playerRange, board)
	require.NoError(t, err)

	combos := m.GetRiverCombos(0, built, board)
	require.Len(t, combos, 3)
	for i := 1; i < len(combos); i++ {
		assert.GreaterOrEqual(t, combos[i-1].Rank, combos[i].Rank)
	}
	// Weakest hand first: fives, then kings, then aces.
	assert.Equal(t, "5s5h", combos[0].Cards.String())
	assert.Equal(t, "KsKh", combos[1].Cards.String())
	assert.Equal(t, "AhAc", combos[2].Cards.String())

	// Reach indexes refer to the full range order.
	assert.Equal(t, 1, combos[0].ReachProbIndex)
	assert.Equal(t, 2, combos[1].ReachProbIndex)
	assert.Equal(t, 0, combos[2].ReachProbIndex)
}

func TestRiverRangeManagerFiltersBlockers(t *testing.T) {
	eval := evaluator.New()
	m := NewRiverRangeManager(eval)

	board := poker.BoardMaskFrom(poker.MustParseCards("QsJh2c7d2s")...)
	playerRange := MustParseRange("QhQd,77")
	built, err := BuildRange(playerRange, 0)
	require.NoError(t, err)

	combos := m.GetRiverCombos(0, built, board)
	// 7d on board blocks the 7d combos out of 77; QhQd survives.
	for _, c := range combos {
		assert.False(t, c.Cards.Intersects(board))
	}

	again := m.GetRiverCombos(0, built, board)
	assert.Equal(t, combos, again)
}

func TestPrivateCardsManagerTranslation(t *testing.T) {
	board := poker.BoardMask(0)
	p0, err := BuildRange(MustParseRange("AhAs,KhKs"), board)
	require.NoError(t, err)
	p1, err := BuildRange(MustParseRange("KhKs,QhQs"), board)
	require.NoError(t, err)

	m := NewPrivateCardsManager(p0, p1)
	assert.Equal(t, p0, m.PreflopCards(0))

	// KhKs is index 1 for player 0 and index 0 for player 1.
	assert.Equal(t, 0, m.IndexToOtherPlayer(0, 1, 1))
	assert.Equal(t, 1, m.IndexToOtherPlayer(1, 0, 0))
	// AhAs has no counterpart in player 1's range.
	assert.Equal(t, -1, m.IndexToOtherPlayer(0, 1, 0))
	// Same-player translation is the identity.
	assert.Equal(t, 1, m.IndexToOtherPlayer(0, 0, 1))
}
