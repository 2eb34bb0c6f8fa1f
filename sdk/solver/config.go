package solver

import (
	"fmt"
	"io"
	"math/rand"
	"runtime"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Config holds configuration for a solve run.
type Config struct {
	// Iterations is the maximum number of CFR iterations.
	Iterations int
	// PrintInterval controls how often exploitability is measured and
	// per-node values are snapshotted.
	PrintInterval int
	// Warmup runs the first iterations on one sampled suit per rank at
	// each chance node, seeding sibling deals with the learned strategy.
	Warmup int
	// Accuracy stops the run once exploitability, as a percentage of the
	// pot, drops to this value.
	Accuracy float64
	// Threads caps concurrent subtree traversals at the first chance
	// layer.
	Threads int

	Algorithm       Algorithm
	WeightedAverage bool
	UseIsomorphism  bool
	EnableEquity    bool

	Logger *log.Logger
	Clock  quartz.Clock
	// ProgressWriter receives one JSON line per exploitability
	// measurement when non-nil.
	ProgressWriter io.Writer
	Rng            *rand.Rand
}

func (c *Config) applyDefaults() {
	if c.Iterations == 0 {
		c.Iterations = 100
	}
	if c.PrintInterval == 0 {
		c.PrintInterval = 10
	}
	if c.Threads == 0 {
		c.Threads = runtime.NumCPU()
	}
	if c.Algorithm == "" {
		c.Algorithm = AlgorithmDiscountedCfr
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard)
	}
	if c.Clock == nil {
		c.Clock = quartz.NewReal()
	}
	if c.Rng == nil {
		c.Rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
}

func (c *Config) validate() error {
	if c.Iterations < 0 {
		return fmt.Errorf("iterations must be non-negative, got %d", c.Iterations)
	}
	if c.PrintInterval < 0 {
		return fmt.Errorf("print interval must be non-negative, got %d", c.PrintInterval)
	}
	if c.Warmup < 0 {
		return fmt.Errorf("warmup must be non-negative, got %d", c.Warmup)
	}
	if c.Accuracy < 0 {
		return fmt.Errorf("accuracy must be non-negative, got %v", c.Accuracy)
	}
	if c.Threads < 1 {
		return fmt.Errorf("threads must be positive, got %d", c.Threads)
	}
	return nil
}
