package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/postflop/poker"
	"github.com/lox/postflop/sdk/tree"
)

// JobConfig describes one solve job: the spot, both ranges, the betting
// tree shape and the run settings.
type JobConfig struct {
	Board    string `hcl:"board"`
	IpRange  string `hcl:"ip_range"`
	OopRange string `hcl:"oop_range"`

	Pot            float64 `hcl:"pot,optional"`
	OopCommit      float64 `hcl:"oop_commit,optional"`
	IpCommit       float64 `hcl:"ip_commit,optional"`
	EffectiveStack float64 `hcl:"effective_stack,optional"`

	Tree  *TreeConfig  `hcl:"tree,block"`
	Solve *SolveConfig `hcl:"solve,block"`
}

// TreeConfig holds the bet sizing menus per street.
type TreeConfig struct {
	Flop  *StreetConfig `hcl:"flop,block"`
	Turn  *StreetConfig `hcl:"turn,block"`
	River *StreetConfig `hcl:"river,block"`

	RaiseLimit     int     `hcl:"raise_limit,optional"`
	AllInThreshold float64 `hcl:"allin_threshold,optional"`
}

// StreetConfig holds the sizes for one street, as percentages of the pot.
type StreetConfig struct {
	BetSizes   []float64 `hcl:"bet_sizes,optional"`
	RaiseSizes []float64 `hcl:"raise_sizes,optional"`
	AllIn      bool      `hcl:"allin,optional"`
}

// SolveConfig holds the run settings.
type SolveConfig struct {
	Iterations     int     `hcl:"iterations,optional"`
	PrintInterval  int     `hcl:"print_interval,optional"`
	Warmup         int     `hcl:"warmup,optional"`
	Accuracy       float64 `hcl:"accuracy,optional"`
	Threads        int     `hcl:"threads,optional"`
	Algorithm      string  `hcl:"algorithm,optional"`
	UseIsomorphism bool    `hcl:"use_isomorphism,optional"`
	EnableEquity   bool    `hcl:"enable_equity,optional"`
}

// DefaultJobConfig returns a config with sensible sizing and run defaults.
// Board and ranges have no default and must come from the file.
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		EffectiveStack: 100,
		Tree: &TreeConfig{
			Flop:           &StreetConfig{BetSizes: []float64{50}, RaiseSizes: []float64{100}, AllIn: true},
			Turn:           &StreetConfig{BetSizes: []float64{50}, RaiseSizes: []float64{100}, AllIn: true},
			River:          &StreetConfig{BetSizes: []float64{50}, RaiseSizes: []float64{100}, AllIn: true},
			RaiseLimit:     5,
			AllInThreshold: 0.98,
		},
		Solve: &SolveConfig{
			Iterations:     200,
			PrintInterval:  10,
			Accuracy:       0.5,
			Algorithm:      "discounted_cfr",
			UseIsomorphism: true,
		},
	}
}

// LoadJobConfig reads an HCL job file. Blocks omitted from the file keep
// their defaults.
func LoadJobConfig(path string) (*JobConfig, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("job file %s: %w", path, err)
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse job file %s: %s", path, diags.Error())
	}

	cfg := &JobConfig{}
	if diags := gohcl.DecodeBody(file.Body, nil, cfg); diags.HasErrors() {
		return nil, fmt.Errorf("decode job file %s: %s", path, diags.Error())
	}

	defaults := DefaultJobConfig()
	if cfg.EffectiveStack == 0 {
		cfg.EffectiveStack = defaults.EffectiveStack
	}
	if cfg.Tree == nil {
		cfg.Tree = defaults.Tree
	} else {
		if cfg.Tree.Flop == nil {
			cfg.Tree.Flop = defaults.Tree.Flop
		}
		if cfg.Tree.Turn == nil {
			cfg.Tree.Turn = defaults.Tree.Turn
		}
		if cfg.Tree.River == nil {
			cfg.Tree.River = defaults.Tree.River
		}
		if cfg.Tree.RaiseLimit == 0 {
			cfg.Tree.RaiseLimit = defaults.Tree.RaiseLimit
		}
		if cfg.Tree.AllInThreshold == 0 {
			cfg.Tree.AllInThreshold = defaults.Tree.AllInThreshold
		}
	}
	if cfg.Solve == nil {
		cfg.Solve = defaults.Solve
	} else {
		if cfg.Solve.Iterations == 0 {
			cfg.Solve.Iterations = defaults.Solve.Iterations
		}
		if cfg.Solve.PrintInterval == 0 {
			cfg.Solve.PrintInterval = defaults.Solve.PrintInterval
		}
		if cfg.Solve.Accuracy == 0 {
			cfg.Solve.Accuracy = defaults.Solve.Accuracy
		}
		if cfg.Solve.Algorithm == "" {
			cfg.Solve.Algorithm = defaults.Solve.Algorithm
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the parts the loader cannot default.
func (c *JobConfig) Validate() error {
	if c.Board == "" {
		return fmt.Errorf("board is required")
	}
	if _, err := poker.ParseCards(c.Board); err != nil {
		return fmt.Errorf("board: %w", err)
	}
	if c.IpRange == "" {
		return fmt.Errorf("ip_range is required")
	}
	if c.OopRange == "" {
		return fmt.Errorf("oop_range is required")
	}
	if c.Pot == 0 && (c.OopCommit == 0 || c.IpCommit == 0) {
		return fmt.Errorf("either pot or both oop_commit and ip_commit are required")
	}
	if c.Pot < 0 || c.OopCommit < 0 || c.IpCommit < 0 {
		return fmt.Errorf("pot and commits must be non-negative")
	}
	if c.EffectiveStack < 0 {
		return fmt.Errorf("effective_stack must be non-negative, got %v", c.EffectiveStack)
	}
	switch c.Solve.Algorithm {
	case "discounted_cfr", "cfr_plus":
	default:
		return fmt.Errorf("unknown algorithm %q", c.Solve.Algorithm)
	}
	return nil
}

// Rule converts the job into a tree rule. A bare pot is split evenly
// between the two commits.
func (c *JobConfig) Rule() (tree.Rule, error) {
	board, err := poker.ParseCards(c.Board)
	if err != nil {
		return tree.Rule{}, fmt.Errorf("board: %w", err)
	}

	var round tree.Round
	switch len(board) {
	case 3:
		round = tree.Flop
	case 4:
		round = tree.Turn
	case 5:
		round = tree.River
	default:
		return tree.Rule{}, fmt.Errorf("board needs 3, 4 or 5 cards, got %d", len(board))
	}

	oop, ip := c.OopCommit, c.IpCommit
	if oop == 0 && ip == 0 {
		oop, ip = c.Pot/2, c.Pot/2
	}

	return tree.Rule{
		InitialBoard:   board,
		OopCommit:      oop,
		IpCommit:       ip,
		EffectiveStack: c.EffectiveStack,
		CurrentRound:   round,
		Settings: tree.Settings{
			Flop:           c.Tree.Flop.setting(),
			Turn:           c.Tree.Turn.setting(),
			River:          c.Tree.River.setting(),
			RaiseLimit:     c.Tree.RaiseLimit,
			AllInThreshold: c.Tree.AllInThreshold,
		},
	}, nil
}

func (sc *StreetConfig) setting() tree.StreetSetting {
	return tree.StreetSetting{
		BetSizes:   percentsToFractions(sc.BetSizes),
		RaiseSizes: percentsToFractions(sc.RaiseSizes),
		AllIn:      sc.AllIn,
	}
}

func percentsToFractions(percents []float64) []float64 {
	out := make([]float64, len(percents))
	for i, p := range percents {
		out[i] = p / 100
	}
	return out
}
