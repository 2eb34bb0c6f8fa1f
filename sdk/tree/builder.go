package tree

import (
	"fmt"
	"sort"

	"github.com/lox/postflop/poker"
)

// Players are indexed 0 = in position, 1 = out of position. The out of
// position player acts first on every street.
const (
	IP  = 0
	OOP = 1
)

// StreetSetting gives the bet sizing menu for one street. Sizes are
// fractions of the pot (for bets) or of the pot after calling (for raises).
type StreetSetting struct {
	BetSizes   []float64
	RaiseSizes []float64
	AllIn      bool
}

// Settings control the shape of the betting tree.
type Settings struct {
	Flop  StreetSetting
	Turn  StreetSetting
	River StreetSetting

	// RaiseLimit caps bets plus raises per street.
	RaiseLimit int
	// AllInThreshold converts a bet into all-in once it reaches this
	// fraction of the player's maximum commitment.
	AllInThreshold float64
}

func (s *Settings) street(r Round) StreetSetting {
	switch r {
	case Flop:
		return s.Flop
	case Turn:
		return s.Turn
	default:
		return s.River
	}
}

// Rule describes one solve: the public state at the root and the tree
// settings used to expand it.
type Rule struct {
	InitialBoard []poker.Card

	// OopCommit and IpCommit are chips already in the pot per player.
	OopCommit float64
	IpCommit  float64
	// EffectiveStack is chips behind per player at the root.
	EffectiveStack float64

	CurrentRound Round
	Settings     Settings
}

// Validate checks the rule is solvable.
func (r *Rule) Validate() error {
	want := 0
	switch r.CurrentRound {
	case Flop:
		want = 3
	case Turn:
		want = 4
	case River:
		want = 5
	default:
		return fmt.Errorf("unsupported root round %s", r.CurrentRound)
	}
	if len(r.InitialBoard) != want {
		return fmt.Errorf("%s board needs %d cards, got %d", r.CurrentRound, want, len(r.InitialBoard))
	}
	board := poker.BoardMaskFrom(r.InitialBoard...)
	if board.Count() != want {
		return fmt.Errorf("board %v contains duplicate cards", r.InitialBoard)
	}
	if r.OopCommit <= 0 || r.IpCommit <= 0 {
		return fmt.Errorf("commits must be positive, got oop=%v ip=%v", r.OopCommit, r.IpCommit)
	}
	if r.EffectiveStack < 0 {
		return fmt.Errorf("effective stack must be non-negative, got %v", r.EffectiveStack)
	}
	if r.Settings.RaiseLimit < 0 {
		return fmt.Errorf("raise limit must be non-negative, got %d", r.Settings.RaiseLimit)
	}
	return nil
}

// InitialPot returns the pot at the root.
func (r *Rule) InitialPot() float64 {
	return r.OopCommit + r.IpCommit
}

func (r *Rule) commitCap(player int) float64 {
	if player == OOP {
		return r.OopCommit + r.EffectiveStack
	}
	return r.IpCommit + r.EffectiveStack
}

// GameTree is the immutable betting tree for one rule.
type GameTree struct {
	Root Node
	Rule Rule
}

// BuildTree expands the rule into the full betting tree. Every action node
// is allocated its abstraction-deal slot count up front.
func BuildTree(rule Rule) (*GameTree, error) {
	if err := rule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule: %w", err)
	}
	b := &builder{rule: rule}
	commits := [2]float64{rule.IpCommit, rule.OopCommit}
	root := b.actionNode(rule.CurrentRound, OOP, commits, 0)
	return &GameTree{Root: root, Rule: rule}, nil
}

type builder struct {
	rule Rule
}

// numDeals returns the trainable slot count for a node on the given street.
func (b *builder) numDeals(round Round) int {
	switch int(round) - int(b.rule.CurrentRound) {
	case 0:
		return 1
	case 1:
		return 1 + poker.NumCards
	default:
		return 1 + poker.NumCards + poker.NumCards*poker.NumCards
	}
}

func (b *builder) actionNode(round Round, player int, commits [2]float64, raises int) *ActionNode {
	myCommit := commits[player]
	oppCommit := commits[1-player]
	callAmount := oppCommit - myCommit
	pot := commits[0] + commits[1]
	setting := b.rule.Settings.street(round)

	var actions []GameAction
	var children []Node

	if callAmount > 0 {
		actions = append(actions, GameAction{Kind: Fold})
		children = append(children, NewTerminalNode(round, 1-player, myCommit))

		called := commits
		called[player] = oppCommit
		actions = append(actions, GameAction{Kind: Call})
		children = append(children, b.closeStreet(round, called))

		if raises < b.rule.Settings.RaiseLimit {
			for _, target := range b.raiseTargets(player, oppCommit, pot+callAmount, setting) {
				next := commits
				next[player] = target
				actions = append(actions, GameAction{Kind: Raise, Amount: target})
				children = append(children, b.actionNode(round, 1-player, next, raises+1))
			}
		}
	} else {
		actions = append(actions, GameAction{Kind: Check})
		if player == IP {
			children = append(children, b.closeStreet(round, commits))
		} else {
			children = append(children, b.actionNode(round, IP, commits, raises))
		}

		if raises < b.rule.Settings.RaiseLimit {
			for _, target := range b.betTargets(player, myCommit, pot, setting) {
				next := commits
				next[player] = target
				actions = append(actions, GameAction{Kind: Bet, Amount: target})
				children = append(children, b.actionNode(round, 1-player, next, raises+1))
			}
		}
	}

	return NewActionNode(player, round, actions, children, b.numDeals(round))
}

func (b *builder) betTargets(player int, myCommit, pot float64, setting StreetSetting) []float64 {
	cap := b.rule.commitCap(player)
	var targets []float64
	for _, f := range setting.BetSizes {
		targets = append(targets, b.clampTarget(myCommit+f*pot, cap))
	}
	if setting.AllIn {
		targets = append(targets, cap)
	}
	return dedupeAbove(targets, myCommit)
}

func (b *builder) raiseTargets(player int, oppCommit, potAfterCall float64, setting StreetSetting) []float64 {
	cap := b.rule.commitCap(player)
	var targets []float64
	for _, f := range setting.RaiseSizes {
		targets = append(targets, b.clampTarget(oppCommit+f*potAfterCall, cap))
	}
	if setting.AllIn {
		targets = append(targets, cap)
	}
	return dedupeAbove(targets, oppCommit)
}

// clampTarget caps a commitment at all-in, snapping to all-in once it
// reaches the threshold fraction of the cap.
func (b *builder) clampTarget(target, cap float64) float64 {
	if threshold := b.rule.Settings.AllInThreshold; threshold > 0 && target >= threshold*cap {
		return cap
	}
	if target > cap {
		return cap
	}
	return target
}

// dedupeAbove drops targets at or below floor plus duplicates, preserving
// ascending size order.
func dedupeAbove(targets []float64, floor float64) []float64 {
	sort.Float64s(targets)
	out := targets[:0]
	prev := floor
	for _, t := range targets {
		if t > prev {
			out = append(out, t)
			prev = t
		}
	}
	return out
}

// closeStreet handles the end of a betting round: showdown on the river,
// otherwise a chance card into the next street. With both players all-in
// the remaining streets are pure chance nodes.
func (b *builder) closeStreet(round Round, commits [2]float64) Node {
	if round == River {
		return NewShowdownNode(River, commits)
	}
	next := round.Next()
	if commits[IP] >= b.rule.commitCap(IP) && commits[OOP] >= b.rule.commitCap(OOP) {
		return NewChanceNode(next, b.allInRunout(next, commits))
	}
	return NewChanceNode(next, b.actionNode(next, OOP, commits, 0))
}

func (b *builder) allInRunout(round Round, commits [2]float64) Node {
	if round == River {
		return NewShowdownNode(River, commits)
	}
	next := round.Next()
	return NewChanceNode(next, b.allInRunout(next, commits))
}
