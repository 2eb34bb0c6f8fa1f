package solver

import (
	"math"

	"github.com/lox/postflop/poker"
	"github.com/lox/postflop/sdk/tree"
)

// DumpOptions controls strategy serialization.
type DumpOptions struct {
	// Depth limits how many streets the dump descends into, counted in
	// chance cards from the root. Zero means the whole tree.
	Depth int
	// WithRanges adds both players' reach snapshots to every action node.
	WithRanges bool
}

// suitSwap records one suit exchange applied on the path into a subtree
// that was solved under a canonical suit.
type suitSwap struct {
	s1, s2 uint8
}

// Dump serializes the solved tree as nested JSON-encodable maps. Action
// nodes carry the average strategy, per-action EVs and, when the solve
// tracked them, equities; chance nodes key their subtrees by dealt card.
// Subtrees that were collapsed onto a canonical suit are reconstructed by
// replaying the recorded suit swaps.
func (s *Solver) Dump(opts DumpOptions) map[string]any {
	if opts.Depth <= 0 {
		opts.Depth = 3
	}
	return s.dumpNode(s.tree.Root, 0, opts, 0, nil, s.reachProbs(), s.initialBoard)
}

func (s *Solver) dumpNode(node tree.Node, depth int, opts DumpOptions, deal int, swaps []suitSwap, reach [2][]float64, board poker.BoardMask) map[string]any {
	if depth >= opts.Depth {
		return nil
	}
	switch n := node.(type) {
	case *tree.ActionNode:
		return s.dumpActionNode(n, depth, opts, deal, swaps, reach, board)
	case *tree.ChanceNode:
		return s.dumpChanceNode(n, depth, opts, deal, swaps, reach, board)
	default:
		return nil
	}
}

func (s *Solver) dumpActionNode(n *tree.ActionNode, depth int, opts DumpOptions, deal int, swaps []suitSwap, reach [2][]float64, board poker.BoardMask) map[string]any {
	player := n.Player
	numActions := len(n.Actions)
	numHands := len(s.ranges[player])

	actions := make([]string, numActions)
	for i, a := range n.Actions {
		actions[i] = a.String()
	}

	out := map[string]any{
		"actions":   actions,
		"player":    player,
		"node_type": "action_node",
	}

	trainable := n.Trainable(deal, nil)
	var avg []float64
	if trainable != nil {
		avg = trainable.AverageStrategy()
	}

	children := make(map[string]any)
	for i, child := range n.Children {
		childReach := reach
		if avg != nil {
			probs := append([]float64(nil), reach[player]...)
			for h := range probs {
				probs[h] *= avg[i*numHands+h]
			}
			childReach[player] = probs
		}
		if sub := s.dumpNode(child, depth, opts, deal, swaps, childReach, board); sub != nil {
			children[actions[i]] = sub
		}
	}
	if len(children) > 0 {
		out["childrens"] = children
	}

	if trainable != nil {
		strategyRows := s.handRows(avg, numActions, numHands, 3, player, swaps)
		out["strategy"] = map[string]any{
			"actions":  actions,
			"strategy": s.keyByHand(strategyRows, player),
		}

		evRows := s.handRows(trainable.Evs(), numActions, numHands, 2, player, swaps)
		out["evs"] = map[string]any{
			"actions": actions,
			"evs":     s.keyByHand(evRows, player),
		}

		if s.cfg.EnableEquity {
			equityRows := s.handRows(trainable.Equities(), numActions, numHands, 3, player, swaps)
			out["equities"] = map[string]any{
				"actions":  actions,
				"equities": s.keyByHand(equityRows, player),
			}
		}

		if opts.WithRanges {
			rangeJSON := map[string]any{"player": player}
			for p := 0; p < 2; p++ {
				probs := append([]float64(nil), reach[p]...)
				s.applySwapsFlat(probs, p, swaps)
				data := make(map[string]float64)
				for i, rp := range probs {
					if v := roundTo(rp, 3); v > 0 {
						data[s.ranges[p][i].String()] = v
					}
				}
				if p == tree.IP {
					rangeJSON["ip_range"] = data
				} else {
					rangeJSON["oop_range"] = data
				}
			}
			out["ranges"] = rangeJSON
		}
	}

	return out
}

func (s *Solver) dumpChanceNode(n *tree.ChanceNode, depth int, opts DumpOptions, deal int, swaps []suitSwap, reach [2][]float64, board poker.BoardMask) map[string]any {
	dealcards := make(map[string]any)
	for card, c := range n.Cards() {
		if board.Contains(c) {
			continue
		}

		canonical := card
		newSwaps := swaps
		if off := s.offset(deal, c.Suit()); off < 0 {
			canonical = card + off
			newSwaps = append(append([]suitSwap(nil), swaps...), suitSwap{c.Suit(), uint8(int(c.Suit()) + off)})
		}

		var newDeal int
		switch {
		case deal == 0:
			newDeal = canonical + 1
		case deal <= poker.NumCards:
			newDeal = poker.NumCards*(deal-1) + canonical + 1 + poker.NumCards
		default:
			continue
		}

		// Inside an already-swapped subtree the dealt card is presented
		// under its swapped suit.
		label := c
		if len(swaps) > 0 {
			sw := swaps[0]
			if c.Suit() == sw.s1 || c.Suit() == sw.s2 {
				label = c.SwapSuit(sw.s1, sw.s2)
			}
		}

		cardMask := c.Mask()
		childReach := reach
		for p := 0; p < 2; p++ {
			probs := append([]float64(nil), reach[p]...)
			for h, combo := range s.ranges[p] {
				if combo.Intersects(cardMask) {
					probs[h] = 0
				}
			}
			childReach[p] = probs
		}

		if sub := s.dumpNode(n.Child, depth+1, opts, newDeal, newSwaps, childReach, board.With(c)); sub != nil {
			dealcards[label.String()] = sub
		}
	}

	out := map[string]any{
		"deal_number": len(dealcards),
		"node_type":   "chance_node",
	}
	if len(dealcards) > 0 {
		out["dealcards"] = dealcards
	}
	return out
}

// handRows reshapes a flat [action*numHands+hand] vector into per-hand
// rows, rounds, and undoes the recorded suit swaps.
func (s *Solver) handRows(flat []float64, numActions, numHands, places, player int, swaps []suitSwap) [][]float64 {
	rows := make([][]float64, numHands)
	for h := 0; h < numHands; h++ {
		row := make([]float64, numActions)
		for a := 0; a < numActions; a++ {
			row[a] = roundTo(flat[a*numHands+h], places)
		}
		rows[h] = row
	}
	for _, sw := range swaps {
		perm := s.iso.Permutation(player, sw.s1, sw.s2)
		for i, j := range perm {
			if j > i {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
	}
	return rows
}

func (s *Solver) applySwapsFlat(values []float64, player int, swaps []suitSwap) {
	for _, sw := range swaps {
		s.iso.ExchangeColor(values, player, sw.s1, sw.s2)
	}
}

func (s *Solver) keyByHand(rows [][]float64, player int) map[string][]float64 {
	out := make(map[string][]float64, len(rows))
	for i, row := range rows {
		out[s.ranges[player][i].String()] = row
	}
	return out
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
