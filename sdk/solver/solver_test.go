package solver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/lox/postflop/poker"
	"github.com/lox/postflop/sdk/ranges"
	"github.com/lox/postflop/sdk/tree"
)

func buildTestTree(t *testing.T, board string, round tree.Round, settings tree.Settings) *tree.GameTree {
	t.Helper()
	rule := tree.Rule{
		InitialBoard:   poker.MustParseCards(board),
		OopCommit:      5,
		IpCommit:       5,
		EffectiveStack: 90,
		CurrentRound:   round,
		Settings:       settings,
	}
	gt, err := tree.BuildTree(rule)
	if err != nil {
		t.Fatalf("build tree: %v", err)
	}
	return gt
}

func newTestSolver(t *testing.T, gt *tree.GameTree, ip, oop []ranges.PrivateCards, cfg Config) *Solver {
	t.Helper()
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}
	if cfg.Rng == nil {
		cfg.Rng = rand.New(rand.NewSource(1))
	}
	s, err := NewSolver(gt, ip, oop, cfg)
	if err != nil {
		t.Fatalf("new solver: %v", err)
	}
	return s
}

func TestRiverCheckdownValues(t *testing.T) {
	gt := buildTestTree(t, "Qs Jh 2c 7d 2s", tree.River, tree.Settings{})
	s := newTestSolver(t, gt,
		pairRange(t, "AhAc", "5h5s"),
		pairRange(t, "KsKh"),
		Config{Iterations: 1},
	)

	reach := s.reachProbs()
	br := s.bestResponseValues(tree.IP, gt.Root, reach[tree.OOP], s.initialBoard, 0)
	if abs(br[0]-5) > 1e-9 {
		t.Fatalf("expected the overpair to win the 5 chips behind the check, got %v", br[0])
	}
	if abs(br[1]+5) > 1e-9 {
		t.Fatalf("expected the underpair to lose 5 chips, got %v", br[1])
	}

	// with no bets available every strategy is an equilibrium
	if ev := s.BestResponseEv(tree.IP); abs(ev) > 1e-9 {
		t.Fatalf("expected zero best-response EV in position, got %v", ev)
	}
	if ev := s.BestResponseEv(tree.OOP); abs(ev) > 1e-9 {
		t.Fatalf("expected zero best-response EV out of position, got %v", ev)
	}
	if e := s.Exploitability(); abs(e) > 1e-9 {
		t.Fatalf("expected zero exploitability for a checkdown tree, got %v", e)
	}
}

// polarizedRiverSolver sets up a bet-or-check river spot where the bettor
// holds the nuts plus air against a single bluff catcher.
func polarizedRiverSolver(t *testing.T, cfg Config) *Solver {
	settings := tree.Settings{
		River:      tree.StreetSetting{BetSizes: []float64{1.0}},
		RaiseLimit: 1,
	}
	gt := buildTestTree(t, "Qs Jh 2c 7d 2s", tree.River, settings)
	return newTestSolver(t, gt,
		pairRange(t, "KsKh", "KdKc"),
		pairRange(t, "AsAd", "AhAc", "3h3d", "3s3c"),
		cfg,
	)
}

func TestTrainReducesExploitability(t *testing.T) {
	s := polarizedRiverSolver(t, Config{
		Iterations:    500,
		PrintInterval: 100,
	})

	initial := s.Exploitability()
	final, err := s.Train(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if final >= initial {
		t.Fatalf("expected training to reduce exploitability, got %v -> %v", initial, final)
	}
	if final > 5 {
		t.Fatalf("expected exploitability under 5%% of pot after 500 iterations, got %v", final)
	}
}

func TestBestResponseGainsNonNegative(t *testing.T) {
	s := polarizedRiverSolver(t, Config{
		Iterations:    50,
		PrintInterval: 10,
	})
	if _, err := s.Train(context.Background()); err != nil {
		t.Fatalf("train: %v", err)
	}

	// the game is zero sum, so each player's best-response gain over the
	// equilibrium value is non-negative and their sum tracks exploitability
	sum := s.BestResponseEv(tree.IP) + s.BestResponseEv(tree.OOP)
	if sum < -1e-9 {
		t.Fatalf("expected non-negative combined best-response gain, got %v", sum)
	}
	if e := s.Exploitability(); e < -1e-9 {
		t.Fatalf("expected non-negative exploitability, got %v", e)
	}
}

func TestExploitabilityScaleInvariance(t *testing.T) {
	run := func(scale float64) float64 {
		settings := tree.Settings{
			River:      tree.StreetSetting{BetSizes: []float64{1.0}},
			RaiseLimit: 1,
		}
		rule := tree.Rule{
			InitialBoard:   poker.MustParseCards("Qs Jh 2c 7d 2s"),
			OopCommit:      5 * scale,
			IpCommit:       5 * scale,
			EffectiveStack: 90 * scale,
			CurrentRound:   tree.River,
			Settings:       settings,
		}
		gt, err := tree.BuildTree(rule)
		if err != nil {
			t.Fatalf("build tree: %v", err)
		}
		s := newTestSolver(t, gt,
			pairRange(t, "KsKh", "KdKc"),
			pairRange(t, "AsAd", "AhAc", "3h3d", "3s3c"),
			Config{Iterations: 50, PrintInterval: 10, Rng: rand.New(rand.NewSource(7))},
		)
		final, err := s.Train(context.Background())
		if err != nil {
			t.Fatalf("train: %v", err)
		}
		return final
	}

	small := run(1)
	big := run(100)
	if abs(small-big) > 1e-6 {
		t.Fatalf("expected exploitability in percent of pot to be scale invariant, got %v vs %v", small, big)
	}
}

func TestIsomorphismMatchesFullTraversal(t *testing.T) {
	// checkdown turn tree on a three-heart board: best-response values equal
	// actual values, so suit-collapsed and full traversals must agree
	settings := tree.Settings{}
	ip := pairRange(t, "5d5s", "9d9s")
	oop := pairRange(t, "7d7s")

	gtIso := buildTestTree(t, "Ah Kh Qh 2c", tree.Turn, settings)
	iso := newTestSolver(t, gtIso, ip, oop, Config{Iterations: 1, UseIsomorphism: true})

	gtFull := buildTestTree(t, "Ah Kh Qh 2c", tree.Turn, settings)
	full := newTestSolver(t, gtFull, ip, oop, Config{Iterations: 1})

	for player := 0; player < 2; player++ {
		reachIso := iso.reachProbs()
		reachFull := full.reachProbs()
		brIso := iso.bestResponseValues(player, gtIso.Root, reachIso[1-player], iso.initialBoard, 0)
		brFull := full.bestResponseValues(player, gtFull.Root, reachFull[1-player], full.initialBoard, 0)
		for h := range brIso {
			if abs(brIso[h]-brFull[h]) > 1e-9 {
				t.Fatalf("player %d hand %d: suit-collapsed value %v != full value %v", player, h, brIso[h], brFull[h])
			}
		}
	}
}

func TestIsomorphismSolveConverges(t *testing.T) {
	settings := tree.Settings{
		River:      tree.StreetSetting{BetSizes: []float64{1.0}},
		RaiseLimit: 1,
	}
	gt := buildTestTree(t, "Ah Kh Qh 2c", tree.Turn, settings)
	s := newTestSolver(t, gt,
		pairRange(t, "5d5s", "9d9s"),
		pairRange(t, "7d7s"),
		Config{Iterations: 200, PrintInterval: 50, UseIsomorphism: true},
	)

	initial := s.Exploitability()
	final, err := s.Train(context.Background())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if final >= initial {
		t.Fatalf("expected suit-collapsed training to converge, got %v -> %v", initial, final)
	}
}

func TestTrainWritesProgress(t *testing.T) {
	var buf bytes.Buffer
	s := polarizedRiverSolver(t, Config{
		Iterations:     5,
		PrintInterval:  2,
		ProgressWriter: &buf,
	})
	if _, err := s.Train(context.Background()); err != nil {
		t.Fatalf("train: %v", err)
	}

	var entries []progressEntry
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var entry progressEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("bad progress line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}
	if len(entries) != 2 {
		t.Fatalf("expected progress entries for iterations 2 and 4, got %d", len(entries))
	}
	if entries[0].Iteration != 2 || entries[1].Iteration != 4 {
		t.Fatalf("unexpected progress iterations: %+v", entries)
	}
}

func TestTrainObservesContext(t *testing.T) {
	s := polarizedRiverSolver(t, Config{Iterations: 100})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Train(ctx); err == nil {
		t.Fatal("expected a context error from a cancelled train")
	}
}

func TestNewSolverRejectsBlockedRange(t *testing.T) {
	gt := buildTestTree(t, "Qs Jh 2c 7d 2s", tree.River, tree.Settings{})
	_, err := NewSolver(gt,
		pairRange(t, "QsQd"),
		pairRange(t, "KsKh"),
		Config{},
	)
	if err == nil {
		t.Fatal("expected an error when a range is emptied by board cards")
	}
}

func TestNewSolverRejectsInvalidConfig(t *testing.T) {
	gt := buildTestTree(t, "Qs Jh 2c 7d 2s", tree.River, tree.Settings{})
	_, err := NewSolver(gt,
		pairRange(t, "AhAc"),
		pairRange(t, "KsKh"),
		Config{Iterations: -1},
	)
	if err == nil {
		t.Fatal("expected an error for negative iterations")
	}
}

func TestGetAllAbstractionDeal(t *testing.T) {
	gt := buildTestTree(t, "Qs Jh 2c", tree.Flop, tree.Settings{
		RaiseLimit: 1,
	})
	s := newTestSolver(t, gt,
		pairRange(t, "AhAc"),
		pairRange(t, "KsKh"),
		Config{Iterations: 1},
	)

	if got := s.getAllAbstractionDeal(0); len(got) != 1 || got[0] != 0 {
		t.Fatalf("expected the root deal to stand alone, got %v", got)
	}

	// the deuce group loses 2c to the board, leaving three sibling deals
	got := s.getAllAbstractionDeal(1)
	want := []int{2, 3, 4}
	if len(got) != len(want) {
		t.Fatalf("expected deals %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected deals %v, got %v", want, got)
		}
	}
}
