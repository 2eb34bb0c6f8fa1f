package solver

import (
	"context"
	"strings"
	"testing"

	"github.com/lox/postflop/sdk/tree"
)

func TestDumpActionNode(t *testing.T) {
	s := polarizedRiverSolver(t, Config{
		Iterations:    50,
		PrintInterval: 1,
		EnableEquity:  true,
	})
	if _, err := s.Train(context.Background()); err != nil {
		t.Fatalf("train: %v", err)
	}

	dump := s.Dump(DumpOptions{WithRanges: true})

	if got := dump["node_type"]; got != "action_node" {
		t.Fatalf("expected an action node at the root, got %v", got)
	}
	if got := dump["player"]; got != tree.OOP {
		t.Fatalf("expected the out of position player at the root, got %v", got)
	}

	actions, ok := dump["actions"].([]string)
	if !ok || len(actions) != 2 {
		t.Fatalf("expected check and bet at the root, got %v", dump["actions"])
	}
	hasCheck, hasBet := false, false
	for _, a := range actions {
		if a == "CHECK" {
			hasCheck = true
		}
		if strings.HasPrefix(a, "BET ") {
			hasBet = true
		}
	}
	if !hasCheck || !hasBet {
		t.Fatalf("expected CHECK and BET actions, got %v", actions)
	}

	strategy, ok := dump["strategy"].(map[string]any)
	if !ok {
		t.Fatalf("expected a strategy block, got %T", dump["strategy"])
	}
	byHand, ok := strategy["strategy"].(map[string][]float64)
	if !ok {
		t.Fatalf("expected per-hand strategy rows, got %T", strategy["strategy"])
	}
	probs, ok := byHand["AsAd"]
	if !ok {
		t.Fatalf("expected a strategy row for AsAd, have %d rows", len(byHand))
	}
	var total float64
	for _, p := range probs {
		if p < 0 {
			t.Fatalf("negative strategy probability in %v", probs)
		}
		total += p
	}
	if abs(total-1) > 0.01 {
		t.Fatalf("expected the strategy row to sum to 1, got %v", total)
	}

	if _, ok := dump["evs"].(map[string]any); !ok {
		t.Fatalf("expected an evs block, got %T", dump["evs"])
	}
	if _, ok := dump["equities"].(map[string]any); !ok {
		t.Fatalf("expected an equities block with equity tracking on, got %T", dump["equities"])
	}

	rangesBlock, ok := dump["ranges"].(map[string]any)
	if !ok {
		t.Fatalf("expected a ranges block, got %T", dump["ranges"])
	}
	oopRange, ok := rangesBlock["oop_range"].(map[string]float64)
	if !ok || len(oopRange) == 0 {
		t.Fatalf("expected a non-empty oop range, got %v", rangesBlock["oop_range"])
	}

	children, ok := dump["childrens"].(map[string]any)
	if !ok {
		t.Fatalf("expected children at the root, got %T", dump["childrens"])
	}
	check, ok := children["CHECK"].(map[string]any)
	if !ok {
		t.Fatalf("expected a CHECK child, have %d children", len(children))
	}
	if got := check["player"]; got != tree.IP {
		t.Fatalf("expected the in position player after a check, got %v", got)
	}
}

func TestDumpChanceNode(t *testing.T) {
	gt := buildTestTree(t, "Ah Kh Qh 2c", tree.Turn, tree.Settings{})
	s := newTestSolver(t, gt,
		pairRange(t, "5d5s", "9d9s"),
		pairRange(t, "7d7s"),
		Config{Iterations: 5, PrintInterval: 1, UseIsomorphism: true},
	)
	if _, err := s.Train(context.Background()); err != nil {
		t.Fatalf("train: %v", err)
	}

	dump := s.Dump(DumpOptions{})

	// checkdown turn tree: OOP check, IP check, then the river card
	check, err := walkDump(dump, "CHECK")
	if err != nil {
		t.Fatal(err)
	}
	chance, err := walkDump(check, "CHECK")
	if err != nil {
		t.Fatal(err)
	}
	if got := chance["node_type"]; got != "chance_node" {
		t.Fatalf("expected a chance node after check-check, got %v", got)
	}

	dealcards, ok := chance["dealcards"].(map[string]any)
	if !ok {
		t.Fatalf("expected dealt subtrees, got %T", chance["dealcards"])
	}
	if got := chance["deal_number"]; got != 48 {
		t.Fatalf("expected all 48 live river cards in the dump, got %v", got)
	}
	// suit-collapsed subtrees are reconstructed under their own card label
	for _, label := range []string{"5d", "5s", "Th", "Tc"} {
		if _, ok := dealcards[label]; !ok {
			t.Fatalf("expected a subtree for river card %s", label)
		}
	}
}

func walkDump(node map[string]any, action string) (map[string]any, error) {
	children, ok := node["childrens"].(map[string]any)
	if !ok {
		return nil, errNoChildren(action)
	}
	child, ok := children[action].(map[string]any)
	if !ok {
		return nil, errNoChildren(action)
	}
	return child, nil
}

type errNoChildren string

func (e errNoChildren) Error() string {
	return "dump has no child for action " + string(e)
}
