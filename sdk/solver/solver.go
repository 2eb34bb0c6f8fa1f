package solver

import (
	"fmt"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lox/postflop/internal/evaluator"
	"github.com/lox/postflop/poker"
	"github.com/lox/postflop/sdk/ranges"
	"github.com/lox/postflop/sdk/tree"
)

// Solver runs counterfactual regret minimization over a built game tree for
// a fixed pair of ranges. One solver instance serves one solve.
type Solver struct {
	tree    *tree.GameTree
	cfg     Config
	ranges  [2][]ranges.PrivateCards
	pcm     *ranges.PrivateCardsManager
	rrm     *ranges.RiverRangeManager
	iso     *IsomorphismTable
	factory TrainableFactory

	initialBoard poker.BoardMask

	// rng drives warm-up suit sampling and may be hit from traversal
	// goroutines.
	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewSolver prepares a solve of gt with the given ranges. Player 0 is in
// position, player 1 out of position. Combos blocked by the initial board
// are stripped; the surviving order fixes hand indexes for the run.
func NewSolver(gt *tree.GameTree, ipRange, oopRange []ranges.PrivateCards, cfg Config) (*Solver, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	board := poker.BoardMaskFrom(gt.Rule.InitialBoard...)
	ip, err := ranges.BuildRange(ipRange, board)
	if err != nil {
		return nil, fmt.Errorf("ip range: %w", err)
	}
	oop, err := ranges.BuildRange(oopRange, board)
	if err != nil {
		return nil, fmt.Errorf("oop range: %w", err)
	}
	if len(ip) == 0 || len(oop) == 0 {
		return nil, fmt.Errorf("a range is empty after removing board cards")
	}

	factory, err := NewTrainableFactory(cfg.Algorithm, cfg.WeightedAverage)
	if err != nil {
		return nil, err
	}

	s := &Solver{
		tree:         gt,
		cfg:          cfg,
		ranges:       [2][]ranges.PrivateCards{ip, oop},
		pcm:          ranges.NewPrivateCardsManager(ip, oop),
		rrm:          ranges.NewRiverRangeManager(evaluator.New()),
		factory:      factory,
		initialBoard: board,
		rng:          cfg.Rng,
	}
	s.iso = NewIsomorphismTable(gt.Rule.InitialBoard, s.ranges)
	return s, nil
}

// Tree returns the game tree being solved.
func (s *Solver) Tree() *tree.GameTree { return s.tree }

// Range returns the player's surviving combos in hand-index order.
func (s *Solver) Range(player int) []ranges.PrivateCards { return s.ranges[player] }

// cfrResult carries per-hand counterfactual values up the tree. A nil
// payoffs slice marks a subtree that produced nothing (an unexplored deal).
type cfrResult struct {
	payoffs []float64
	equity  []float64
}

// reachProbs returns each player's initial reach, the raw combo weights.
func (s *Solver) reachProbs() [2][]float64 {
	return [2][]float64{
		ranges.ReachProbs(s.ranges[0]),
		ranges.ReachProbs(s.ranges[1]),
	}
}

// offset returns the suit redundancy offset for a deal, or 0 with suit
// reduction disabled.
func (s *Solver) offset(deal int, suit uint8) int {
	if !s.cfg.UseIsomorphism {
		return 0
	}
	return s.iso.Offset(deal, suit)
}

// cfr computes player's counterfactual values at node. reachProbs is the
// opponent's reach, board the public cards so far, and deal the abstraction
// deal index addressing trainable slots.
func (s *Solver) cfr(player int, node tree.Node, reachProbs []float64, iter int, board poker.BoardMask, deal int) cfrResult {
	switch n := node.(type) {
	case *tree.ActionNode:
		return s.actionUtility(player, n, reachProbs, iter, board, deal)
	case *tree.ChanceNode:
		return s.chanceUtility(player, n, reachProbs, iter, board, deal)
	case *tree.ShowdownNode:
		return s.showdownUtility(player, n, reachProbs, board)
	case *tree.TerminalNode:
		return s.terminalUtility(player, n, reachProbs, board)
	default:
		panic(fmt.Sprintf("unknown node type %T", node))
	}
}

// chanceUtility deals every live card, recursing into each resulting
// subtree, and averages the children back into one value per hand. Redundant
// suits are skipped on the way down and reconstructed from their canonical
// sibling by a suit swap on the way back up.
func (s *Solver) chanceUtility(player int, node *tree.ChanceNode, reachProbs []float64, iter int, board poker.BoardMask, deal int) cfrResult {
	cards := node.Cards()
	possibleDeals := len(cards) - board.Count() - 2
	oppo := 1 - player

	payoffs := make([]float64, len(s.ranges[player]))
	var equity []float64
	if s.cfg.EnableEquity {
		equity = make([]float64, len(s.ranges[player]))
	}

	var multiplier []float64
	if iter <= s.cfg.Warmup {
		multiplier = s.sampleMultipliers(cards, board)
	}

	validCards := make([]int, 0, len(cards))
	for card, c := range cards {
		if board.Contains(c) {
			continue
		}
		if iter <= s.cfg.Warmup && multiplier[card] == 0 {
			continue
		}
		if s.offset(deal, c.Suit()) < 0 {
			continue
		}
		validCards = append(validCards, card)
	}

	results := make([]cfrResult, len(cards))
	runChild := func(card int) {
		c := cards[card]
		oppoRange := s.ranges[oppo]
		newReach := make([]float64, len(oppoRange))
		cardMask := c.Mask()
		for i, combo := range oppoRange {
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
		results[card] = s.cfr(player, node.Child, newReach, iter, board.With(c), newDeal)
	}

	// Only the outermost chance layer fans out; deeper chance nodes
	// already run inside a worker.
	if deal == 0 && s.cfg.Threads > 1 {
		var g errgroup.Group
		g.SetLimit(s.cfg.Threads)
		for _, card := range validCards {
			card := card
			g.Go(func() error {
				runChild(card)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, card := range validCards {
			runChild(card)
		}
	}

	for card, c := range cards {
		var res cfrResult
		if off := s.offset(deal, c.Suit()); off < 0 {
			src := results[card+off]
			if src.payoffs == nil {
				continue
			}
			// The canonical sibling's result is shared across suits, so
			// swap on a copy.
			other := uint8(int(c.Suit()) + off)
			res.payoffs = append([]float64(nil), src.payoffs...)
			s.iso.ExchangeColor(res.payoffs, player, c.Suit(), other)
			if len(src.equity) > 0 {
				res.equity = append([]float64(nil), src.equity...)
				s.iso.ExchangeColor(res.equity, player, c.Suit(), other)
			}
		} else {
			res = results[card]
		}
		if res.payoffs == nil {
			continue
		}

		scale := 1.0
		if iter <= s.cfg.Warmup {
			scale = multiplier[card]
		}
		for i, v := range res.payoffs {
			payoffs[i] += v * scale
		}
		if equity != nil {
			for i, v := range res.equity {
				equity[i] += v * scale
			}
		}
	}

	return cfrResult{payoffs: payoffs, equity: equity}
}

// sampleMultipliers picks one representative suit per rank and weights it by
// the rank's live card count, zeroing the other suits for this visit.
func (s *Solver) sampleMultipliers(cards []poker.Card, board poker.BoardMask) []float64 {
	multiplier := make([]float64, len(cards))
	groups := len(cards) / poker.NumSuits

	targets := make([]int, groups)
	s.rngMu.Lock()
	for base := 0; base < groups; base++ {
		targets[base] = base*poker.NumSuits + s.rng.Intn(poker.NumSuits)
	}
	s.rngMu.Unlock()

	for base := 0; base < groups; base++ {
		live := 0
		for i := 0; i < poker.NumSuits; i++ {
			if !board.Contains(cards[base*poker.NumSuits+i]) {
				live++
			}
		}
		multiplier[targets[base]] = float64(live)
	}
	return multiplier
}

// actionUtility mixes child values by the node player's current strategy,
// then (when the traverser owns the node) feeds the per-action regrets back
// into the trainable.
func (s *Solver) actionUtility(player int, node *tree.ActionNode, reachProbs []float64, iter int, board poker.BoardMask, deal int) cfrResult {
	numActions := len(node.Actions)
	numHands := len(s.ranges[node.Player])
	newTrainable := func() tree.Trainable { return s.factory(numActions, numHands) }

	trainable := node.Trainable(deal, newTrainable)
	strategy := trainable.CurrentStrategy()

	results := make([]cfrResult, numActions)
	for a := 0; a < numActions; a++ {
		if node.Player != player {
			newReach := make([]float64, len(reachProbs))
			for h := range newReach {
				newReach[h] = reachProbs[h] * strategy[a*numHands+h]
			}
			results[a] = s.cfr(player, node.Children[a], newReach, iter, board, deal)
		} else {
			results[a] = s.cfr(player, node.Children[a], reachProbs, iter, board, deal)
		}
	}

	payoffs := make([]float64, len(s.ranges[player]))
	var totalEquity []float64
	if s.cfg.EnableEquity {
		totalEquity = make([]float64, len(s.ranges[player]))
	}

	for a := 0; a < numActions; a++ {
		util := results[a].payoffs
		if util == nil {
			continue
		}
		eq := results[a].equity
		for h, v := range util {
			if player == node.Player {
				p := strategy[a*numHands+h]
				payoffs[h] += p * v
				if totalEquity != nil && eq != nil {
					totalEquity[h] += p * eq[h]
				}
			} else {
				payoffs[h] += v
				if totalEquity != nil && eq != nil {
					totalEquity[h] += eq[h]
				}
			}
		}
	}

	if player == node.Player {
		regrets := make([]float64, numActions*numHands)
		for a := 0; a < numActions; a++ {
			util := results[a].payoffs
			for h := 0; h < numHands; h++ {
				var u float64
				if util != nil {
					u = util[h]
				}
				regrets[a*numHands+h] = u - payoffs[h]
			}
		}

		if iter > s.cfg.Warmup {
			trainable.UpdateRegrets(regrets, iter+1, reachProbs)
		} else {
			// During warm-up one suit represents its rank group; seed
			// every sibling deal's slot with the same strategy.
			var standard tree.Trainable
			for _, d := range s.getAllAbstractionDeal(deal) {
				t := node.Trainable(d, newTrainable)
				if standard == nil {
					t.UpdateRegrets(regrets, iter+1, reachProbs)
					standard = t
				} else {
					t.CopyStrategyFrom(standard)
				}
			}
		}

		if s.cfg.PrintInterval > 0 && iter%s.cfg.PrintInterval == 0 {
			s.snapshotValues(trainable, node, player, results, reachProbs)
		}
	}

	return cfrResult{payoffs: payoffs, equity: totalEquity}
}

// snapshotValues normalizes per-action utilities by the effective opponent
// reach and stores them on the trainable for later reporting.
func (s *Solver) snapshotValues(trainable tree.Trainable, node *tree.ActionNode, player int, results []cfrResult, reachProbs []float64) {
	oppo := 1 - player
	numActions := len(node.Actions)
	numHands := len(s.ranges[node.Player])

	var oppoSum float64
	var oppoCardSum [poker.NumCards]float64
	for i, combo := range s.ranges[oppo] {
		oppoCardSum[combo.Card1] += reachProbs[i]
		oppoCardSum[combo.Card2] += reachProbs[i]
		oppoSum += reachProbs[i]
	}

	rpSum := func(hand int) float64 {
		combo := s.ranges[player][hand]
		plus := 0.0
		if j := s.pcm.IndexToOtherPlayer(player, oppo, hand); j >= 0 {
			plus = reachProbs[j]
		}
		return oppoSum - oppoCardSum[combo.Card1] - oppoCardSum[combo.Card2] + plus
	}

	evs := make([]float64, numActions*numHands)
	for a := 0; a < numActions; a++ {
		util := results[a].payoffs
		for h := 0; h < numHands; h++ {
			var u float64
			if util != nil {
				u = util[h]
			}
			if sum := rpSum(h); sum > 0 {
				evs[a*numHands+h] = u / sum
			}
		}
	}
	trainable.SetEvs(evs)

	if s.cfg.EnableEquity {
		equities := make([]float64, numActions*numHands)
		for a := 0; a < numActions; a++ {
			eq := results[a].equity
			if eq == nil {
				continue
			}
			for h := 0; h < numHands; h++ {
				if sum := rpSum(h); sum > 0 {
					equities[a*numHands+h] = eq[h] / sum
				}
			}
		}
		trainable.SetEquities(equities)
	}
}

// showdownUtility scores every surviving combo against the opponent's range
// on a complete board. Both ranges arrive sorted weakest first, so a single
// merge walk accumulates win mass per combo, with per-card sums subtracting
// blocked opponent combos. Tied combos contribute nothing: a chop returns
// each player's own commitment.
func (s *Solver) showdownUtility(player int, node *tree.ShowdownNode, reachProbs []float64, board poker.BoardMask) cfrResult {
	oppo := 1 - player
	winPayoff := node.Payoff(player, player)
	losePayoff := node.Payoff(oppo, player)

	playerCombs := s.rrm.GetRiverCombos(player, s.ranges[player], board)
	oppoCombs := s.rrm.GetRiverCombos(oppo, s.ranges[oppo], board)

	payoffs := make([]float64, len(s.ranges[player]))

	var equity, effWinsums, effTotals []float64
	var oppoTotal float64
	var oppoCardTotal [poker.NumCards]float64
	if s.cfg.EnableEquity {
		equity = make([]float64, len(s.ranges[player]))
		effWinsums = make([]float64, len(s.ranges[player]))
		effTotals = make([]float64, len(s.ranges[player]))
		for _, oc := range oppoCombs {
			r := reachProbs[oc.ReachProbIndex]
			oppoTotal += r
			oppoCardTotal[oc.Cards.Card1] += r
			oppoCardTotal[oc.Cards.Card2] += r
		}
	}

	var winsum float64
	var cardWinsum [poker.NumCards]float64
	j := 0
	for _, pc := range playerCombs {
		for j < len(oppoCombs) && pc.Rank < oppoCombs[j].Rank {
			oc := oppoCombs[j]
			r := reachProbs[oc.ReachProbIndex]
			winsum += r
			cardWinsum[oc.Cards.Card1] += r
			cardWinsum[oc.Cards.Card2] += r
			j++
		}
		effWinsum := winsum - cardWinsum[pc.Cards.Card1] - cardWinsum[pc.Cards.Card2]
		payoffs[pc.ReachProbIndex] = effWinsum * winPayoff

		if equity != nil {
			effWinsums[pc.ReachProbIndex] = effWinsum
			total := oppoTotal - oppoCardTotal[pc.Cards.Card1] - oppoCardTotal[pc.Cards.Card2]
			if k := s.pcm.IndexToOtherPlayer(player, oppo, pc.ReachProbIndex); k >= 0 {
				total += reachProbs[k]
			}
			effTotals[pc.ReachProbIndex] = total
		}
	}

	var losssum float64
	var cardLosssum [poker.NumCards]float64
	j = len(oppoCombs) - 1
	for i := len(playerCombs) - 1; i >= 0; i-- {
		pc := playerCombs[i]
		for j >= 0 && pc.Rank > oppoCombs[j].Rank {
			oc := oppoCombs[j]
			r := reachProbs[oc.ReachProbIndex]
			losssum += r
			cardLosssum[oc.Cards.Card1] += r
			cardLosssum[oc.Cards.Card2] += r
			j--
		}
		effLosssum := losssum - cardLosssum[pc.Cards.Card1] - cardLosssum[pc.Cards.Card2]
		payoffs[pc.ReachProbIndex] += effLosssum * losePayoff

		if equity != nil {
			idx := pc.ReachProbIndex
			tiesum := effTotals[idx] - effWinsums[idx] - effLosssum
			if tiesum < 0 {
				tiesum = 0
			}
			equity[idx] = effWinsums[idx] + 0.5*tiesum
		}
	}

	return cfrResult{payoffs: payoffs, equity: equity}
}

// terminalUtility pays the fold outcome weighted by the opponent's effective
// reach, adding back the opponent's copy of the identical combo that the
// per-card subtraction removes twice.
func (s *Solver) terminalUtility(player int, node *tree.TerminalNode, reachProbs []float64, board poker.BoardMask) cfrResult {
	playerPayoff := node.Payoffs[player]
	oppo := 1 - player

	payoffs := make([]float64, len(s.ranges[player]))
	var equity []float64
	if s.cfg.EnableEquity {
		equity = make([]float64, len(s.ranges[player]))
	}

	var oppoSum float64
	var oppoCardSum [poker.NumCards]float64
	for i, combo := range s.ranges[oppo] {
		oppoCardSum[combo.Card1] += reachProbs[i]
		oppoCardSum[combo.Card2] += reachProbs[i]
		oppoSum += reachProbs[i]
	}

	for i, combo := range s.ranges[player] {
		if combo.Intersects(board) {
			continue
		}
		plus := 0.0
		if j := s.pcm.IndexToOtherPlayer(player, oppo, i); j >= 0 {
			plus = reachProbs[j]
		}
		eff := oppoSum - oppoCardSum[combo.Card1] - oppoCardSum[combo.Card2] + plus
		payoffs[i] = playerPayoff * eff
		if equity != nil && playerPayoff > 0 {
			equity[i] = eff
		}
	}

	return cfrResult{payoffs: payoffs, equity: equity}
}

// getAllAbstractionDeal expands a deal index into every sibling deal that
// differs only in the suits of its chance cards, skipping cards already on
// the initial board.
func (s *Solver) getAllAbstractionDeal(deal int) []int {
	const cardNum = poker.NumCards
	if deal == 0 {
		return []int{0}
	}

	var deals []int
	if deal <= cardNum {
		origin := ((deal - 1) / poker.NumSuits) * poker.NumSuits
		for i := 0; i < poker.NumSuits; i++ {
			c := poker.Card(origin + i)
			if s.initialBoard.Contains(c) {
				continue
			}
			deals = append(deals, origin+i+1)
		}
		return deals
	}

	c := deal - (1 + cardNum)
	first := ((c / cardNum) / poker.NumSuits) * poker.NumSuits
	second := ((c % cardNum) / poker.NumSuits) * poker.NumSuits
	for i := 0; i < poker.NumSuits; i++ {
		for j := 0; j < poker.NumSuits; j++ {
			if first == second && i == j {
				continue
			}
			c1 := poker.Card(first + i)
			c2 := poker.Card(second + j)
			if s.initialBoard.Contains(c1) || s.initialBoard.Contains(c2) {
				continue
			}
			deals = append(deals, cardNum*(first+i)+(second+j)+1+cardNum)
		}
	}
	return deals
}
