package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/pprof"
	"time"

	"github.com/alecthomas/kong"
	charmlog "github.com/charmbracelet/log"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/lox/postflop/internal/config"
	"github.com/lox/postflop/internal/display"
	"github.com/lox/postflop/internal/fileutil"
	"github.com/lox/postflop/sdk/ranges"
	"github.com/lox/postflop/sdk/solver"
	"github.com/lox/postflop/sdk/tree"
)

var cli struct {
	Debug bool `help:"enable debug logging"`

	Solve SolveCmd `cmd:"" help:"solve a postflop spot and write the strategy dump"`
	Show  ShowCmd  `cmd:"" help:"render a node from a strategy dump"`
}

type SolveCmd struct {
	Job        string  `help:"path to the HCL job file" arg:""`
	Out        string  `help:"path to write the strategy dump JSON" required:""`
	Progress   string  `help:"path to write exploitability progress lines"`
	DumpDepth  int     `help:"streets of chance cards to include in the dump (0 keeps everything)" default:"0"`
	DumpRanges bool    `help:"include reach ranges on every dumped node"`
	Iterations int     `help:"override the job's iteration count" default:"0"`
	Accuracy   float64 `help:"override the job's accuracy target in percent of pot" default:"0"`
	Threads    int     `help:"override the job's thread count" default:"0"`
	CPUProfile string  `help:"write CPU profile to file"`
}

type ShowCmd struct {
	Dump   string   `help:"path to a strategy dump written by solve" arg:""`
	Path   []string `help:"actions and dealt cards leading to the node, e.g. CHECK 'BET 5' Ah" arg:"" optional:""`
	Ranges bool     `help:"render the reach range grids when the dump carries them"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("postflop"),
		kong.Description("Postflop CFR solver"),
		kong.UsageOnError(),
	)

	setupLogger(cli.Debug)

	switch ctx.Command() {
	case "solve <job>":
		if err := cli.Solve.Run(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("solve failed")
		}
	case "show <dump>", "show <dump> <path>":
		if err := cli.Show.Run(context.Background()); err != nil {
			log.Fatal().Err(err).Msg("show failed")
		}
	default:
		log.Fatal().Msgf("unknown command: %s", ctx.Command())
	}
}

func setupLogger(debug bool) {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)
}

func (cmd *SolveCmd) Run(ctx context.Context) error {
	if cmd.CPUProfile != "" {
		f, err := os.Create(cmd.CPUProfile)
		if err != nil {
			return fmt.Errorf("create cpu profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		defer pprof.StopCPUProfile()
		log.Info().Str("path", cmd.CPUProfile).Msg("CPU profiling enabled")
	}

	job, err := config.LoadJobConfig(cmd.Job)
	if err != nil {
		return err
	}
	if cmd.Iterations > 0 {
		job.Solve.Iterations = cmd.Iterations
	}
	if cmd.Accuracy > 0 {
		job.Solve.Accuracy = cmd.Accuracy
	}
	if cmd.Threads > 0 {
		job.Solve.Threads = cmd.Threads
	}

	rule, err := job.Rule()
	if err != nil {
		return err
	}
	gameTree, err := tree.BuildTree(rule)
	if err != nil {
		return fmt.Errorf("build tree: %w", err)
	}

	ipRange, err := ranges.ParseRange(job.IpRange)
	if err != nil {
		return fmt.Errorf("ip_range: %w", err)
	}
	oopRange, err := ranges.ParseRange(job.OopRange)
	if err != nil {
		return fmt.Errorf("oop_range: %w", err)
	}

	solveCfg := solver.Config{
		Iterations:     job.Solve.Iterations,
		PrintInterval:  job.Solve.PrintInterval,
		Warmup:         job.Solve.Warmup,
		Accuracy:       job.Solve.Accuracy,
		Threads:        job.Solve.Threads,
		Algorithm:      solver.Algorithm(job.Solve.Algorithm),
		UseIsomorphism: job.Solve.UseIsomorphism,
		EnableEquity:   job.Solve.EnableEquity,
		Logger:         charmlog.New(os.Stderr),
	}

	if cmd.Progress != "" {
		f, err := os.Create(cmd.Progress)
		if err != nil {
			return fmt.Errorf("create progress file: %w", err)
		}
		defer f.Close()
		solveCfg.ProgressWriter = f
	}

	s, err := solver.NewSolver(gameTree, ipRange, oopRange, solveCfg)
	if err != nil {
		return fmt.Errorf("create solver: %w", err)
	}

	log.Info().
		Str("board", job.Board).
		Float64("pot", rule.InitialPot()).
		Int("iterations", job.Solve.Iterations).
		Str("algorithm", job.Solve.Algorithm).
		Msg("starting solve")

	start := time.Now()
	exploitability, err := s.Train(ctx)
	if err != nil {
		return fmt.Errorf("train: %w", err)
	}
	log.Info().
		Dur("duration", time.Since(start)).
		Float64("exploitability", exploitability).
		Msg("solve complete")

	dump := s.Dump(solver.DumpOptions{Depth: cmd.DumpDepth, WithRanges: cmd.DumpRanges})
	err = fileutil.WriteFileAtomic(cmd.Out, 0o644, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(dump)
	})
	if err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	log.Info().Str("path", cmd.Out).Msg("strategy dump written")
	return nil
}

func (cmd *ShowCmd) Run(_ context.Context) error {
	data, err := os.ReadFile(cmd.Dump)
	if err != nil {
		return fmt.Errorf("read dump: %w", err)
	}
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("decode dump: %w", err)
	}

	node, err := display.ChildAt(root, cmd.Path)
	if err != nil {
		return err
	}

	renderer := display.NewRenderer()
	rendered, err := renderer.Node(node)
	if err != nil {
		return err
	}
	fmt.Print(rendered)

	if cmd.Ranges {
		rangeBlock, ok := node["ranges"].(map[string]any)
		if !ok {
			log.Warn().Msg("dump has no ranges; re-run solve with --dump-ranges")
			return nil
		}
		for _, key := range []string{"oop_range", "ip_range"} {
			raw, ok := rangeBlock[key].(map[string]any)
			if !ok {
				continue
			}
			weights := make(map[string]float64, len(raw))
			for combo, v := range raw {
				if f, ok := v.(float64); ok {
					weights[combo] = f
				}
			}
			fmt.Println()
			fmt.Print(renderer.RangeGrid(key, weights))
		}
	}
	return nil
}
