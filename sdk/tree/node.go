package tree

import (
	"github.com/lox/postflop/poker"
)

// Round is a betting street.
type Round uint8

const (
	Preflop Round = iota
	Flop
	Turn
	River
)

func (r Round) String() string {
	switch r {
	case Preflop:
		return "preflop"
	case Flop:
		return "flop"
	case Turn:
		return "turn"
	case River:
		return "river"
	default:
		return "unknown"
	}
}

// Next returns the following street.
func (r Round) Next() Round {
	if r >= River {
		return River
	}
	return r + 1
}

// Node is one game-tree node. The tree shape is immutable after building;
// only the trainable slots of action nodes mutate during training.
type Node interface {
	Round() Round
}

// ActionNode is a decision point for one player.
type ActionNode struct {
	Player   int
	Actions  []GameAction
	Children []Node

	round Round

	// trainables is indexed by abstraction deal and filled lazily. A given
	// (node, deal) pair is only ever touched by one goroutine at a time
	// within a traversal, so slot creation needs no lock.
	trainables []Trainable
}

// NewActionNode builds a decision node with numDeals empty trainable slots.
func NewActionNode(player int, round Round, actions []GameAction, children []Node, numDeals int) *ActionNode {
	return &ActionNode{
		Player:     player,
		Actions:    actions,
		Children:   children,
		round:      round,
		trainables: make([]Trainable, numDeals),
	}
}

func (n *ActionNode) Round() Round { return n.round }

// NumDeals returns the number of abstraction-deal slots.
func (n *ActionNode) NumDeals() int { return len(n.trainables) }

// Trainable returns the slot for the deal, creating it via factory on first
// touch. A nil factory returns whatever is stored (possibly nil).
func (n *ActionNode) Trainable(deal int, factory func() Trainable) Trainable {
	if n.trainables[deal] == nil && factory != nil {
		n.trainables[deal] = factory()
	}
	return n.trainables[deal]
}

// ChanceNode deals one public card and leads into round's betting.
type ChanceNode struct {
	Child Node

	round Round
	cards []poker.Card
}

// NewChanceNode builds a chance node dealing into round.
func NewChanceNode(round Round, child Node) *ChanceNode {
	return &ChanceNode{Child: child, round: round, cards: poker.NewDeck().Cards()}
}

func (n *ChanceNode) Round() Round { return n.round }

// Cards returns the full deck view indexed by card integer.
func (n *ChanceNode) Cards() []poker.Card { return n.cards }

// TerminalNode ends the hand with a fold.
type TerminalNode struct {
	// Payoffs holds the signed chip outcome per player; they sum to zero.
	Payoffs [2]float64

	round Round
}

// NewTerminalNode builds a fold terminal where winner takes amount chips
// from the folder.
func NewTerminalNode(round Round, winner int, amount float64) *TerminalNode {
	n := &TerminalNode{round: round}
	n.Payoffs[winner] = amount
	n.Payoffs[1-winner] = -amount
	return n
}

func (n *TerminalNode) Round() Round { return n.round }

// ShowdownNode ends the hand by comparing hands on the final board.
type ShowdownNode struct {
	// WinPayoffs[w][p] is player p's payoff when player w wins outright.
	// A chop nets zero for both players: commitments are equal once the
	// final betting round closes, so each side just takes its own back.
	WinPayoffs [2][2]float64

	round Round
}

// NewShowdownNode builds a showdown where each winner takes the loser's
// total commitment.
func NewShowdownNode(round Round, commits [2]float64) *ShowdownNode {
	n := &ShowdownNode{round: round}
	for w := 0; w < 2; w++ {
		n.WinPayoffs[w][w] = commits[1-w]
		n.WinPayoffs[w][1-w] = -commits[1-w]
	}
	return n
}

func (n *ShowdownNode) Round() Round { return n.round }

// Payoff returns the payoff for forPlayer when winner wins outright.
func (n *ShowdownNode) Payoff(winner, forPlayer int) float64 {
	return n.WinPayoffs[winner][forPlayer]
}
