package solver

import (
	"fmt"

	"github.com/lox/postflop/poker"
	"github.com/lox/postflop/sdk/tree"
)

// Exploitability measures how far the current average strategies are from
// equilibrium: the mean of both players' best-response gains, as a
// percentage of the initial pot.
func (s *Solver) Exploitability() float64 {
	pot := s.tree.Rule.InitialPot()
	return (s.BestResponseEv(tree.IP) + s.BestResponseEv(tree.OOP)) / 2 / pot * 100
}

// BestResponseEv returns player's expected value, in chips, when playing a
// best response against the opponent's current average strategy.
func (s *Solver) BestResponseEv(player int) float64 {
	reach := s.reachProbs()
	br := s.bestResponseValues(player, s.tree.Root, reach[1-player], s.initialBoard, 0)

	oppo := 1 - player
	var oppoSum float64
	var oppoCardSum [poker.NumCards]float64
	for i, combo := range s.ranges[oppo] {
		oppoCardSum[combo.Card1] += reach[oppo][i]
		oppoCardSum[combo.Card2] += reach[oppo][i]
		oppoSum += reach[oppo][i]
	}

	// br values are counterfactual, weighted by opponent reach mass, so
	// normalize by the total compatible combo-pair mass.
	var total, norm float64
	for h, combo := range s.ranges[player] {
		plus := 0.0
		if j := s.pcm.IndexToOtherPlayer(player, oppo, h); j >= 0 {
			plus = reach[oppo][j]
		}
		eff := oppoSum - oppoCardSum[combo.Card1] - oppoCardSum[combo.Card2] + plus
		total += reach[player][h] * br[h]
		norm += reach[player][h] * eff
	}
	if norm == 0 {
		return 0
	}
	return total / norm
}

func (s *Solver) bestResponseValues(player int, node tree.Node, reachProbs []float64, board poker.BoardMask, deal int) []float64 {
	switch n := node.(type) {
	case *tree.ActionNode:
		return s.actionBestResponse(player, n, reachProbs, board, deal)
	case *tree.ChanceNode:
		return s.chanceBestResponse(player, n, reachProbs, board, deal)
	case *tree.ShowdownNode:
		return s.showdownUtility(player, n, reachProbs, board).payoffs
	case *tree.TerminalNode:
		return s.terminalUtility(player, n, reachProbs, board).payoffs
	default:
		panic(fmt.Sprintf("unknown node type %T", node))
	}
}

// actionBestResponse takes the per-hand maximum over the responder's own
// actions and plays the stored average strategy at opponent nodes.
func (s *Solver) actionBestResponse(player int, node *tree.ActionNode, reachProbs []float64, board poker.BoardMask, deal int) []float64 {
	numActions := len(node.Actions)
	numHands := len(s.ranges[node.Player])

	if node.Player == player {
		best := make([]float64, len(s.ranges[player]))
		for a := 0; a < numActions; a++ {
			utils := s.bestResponseValues(player, node.Children[a], reachProbs, board, deal)
			for h, v := range utils {
				if a == 0 || v > best[h] {
					best[h] = v
				}
			}
		}
		return best
	}

	strategy := s.averageStrategy(node, deal, numActions, numHands)
	payoffs := make([]float64, len(s.ranges[player]))
	for a := 0; a < numActions; a++ {
		newReach := make([]float64, len(reachProbs))
		for h := range newReach {
			newReach[h] = reachProbs[h] * strategy[a*numHands+h]
		}
		utils := s.bestResponseValues(player, node.Children[a], newReach, board, deal)
		for h, v := range utils {
			payoffs[h] += v
		}
	}
	return payoffs
}

// averageStrategy reads the slot's average strategy, falling back to
// uniform for slots the traversal never trained.
func (s *Solver) averageStrategy(node *tree.ActionNode, deal, numActions, numHands int) []float64 {
	if t := node.Trainable(deal, nil); t != nil {
		return t.AverageStrategy()
	}
	strategy := make([]float64, numActions*numHands)
	uniform := 1.0 / float64(numActions)
	for i := range strategy {
		strategy[i] = uniform
	}
	return strategy
}

// chanceBestResponse mirrors the solve traversal's chance handling: skip
// redundant suits on the way down, reconstruct them by a suit swap on the
// way back up.
func (s *Solver) chanceBestResponse(player int, node *tree.ChanceNode, reachProbs []float64, board poker.BoardMask, deal int) []float64 {
	cards := node.Cards()
	possibleDeals := len(cards) - board.Count() - 2
	oppo := 1 - player

	results := make([][]float64, len(cards))
	for card, c := range cards {
		if board.Contains(c) || s.offset(deal, c.Suit()) < 0 {
			continue
		}
		newReach := make([]float64, len(s.ranges[oppo]))
		cardMask := c.Mask()
		for i, combo := range s.ranges[oppo] {
			if combo.Intersects(cardMask) {
				continue
			}
			newReach[i] = reachProbs[i] / float64(possibleDeals)
		}

		var newDeal int
		switch {
		case deal == 0:
			newDeal = card + 1
		case deal <= poker.NumCards:
			newDeal = poker.NumCards*(deal-1) + card + 1 + poker.NumCards
		default:
			panic(fmt.Sprintf("deal %d out of range at a chance node", deal))
		}
		results[card] = s.bestResponseValues(player, node.Child, newReach, board.With(c), newDeal)
	}

	payoffs := make([]float64, len(s.ranges[player]))
	for card, c := range cards {
		utils := results[card]
		if off := s.offset(deal, c.Suit()); off < 0 {
			src := results[card+off]
			if src == nil {
				continue
			}
			utils = append([]float64(nil), src...)
			s.iso.ExchangeColor(utils, player, c.Suit(), uint8(int(c.Suit())+off))
		}
		if utils == nil {
			continue
		}
		for i, v := range utils {
			payoffs[i] += v
		}
	}
	return payoffs
}
