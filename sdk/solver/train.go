package solver

import (
	"context"
	"encoding/json"
	"fmt"
)

// progressEntry is one exploitability report line in the progress log.
type progressEntry struct {
	Iteration      int     `json:"iteration"`
	Exploitability float64 `json:"exploitability"`
	TimeMs         int64   `json:"time_ms"`
}

// Train runs up to Iterations CFR passes, alternating the traversing
// player. Exploitability is measured every PrintInterval iterations and the
// run stops early once it reaches Accuracy. The context is only observed at
// iteration boundaries. Returns the last measured exploitability.
func (s *Solver) Train(ctx context.Context) (float64, error) {
	reach := s.reachProbs()
	logger := s.cfg.Logger
	start := s.cfg.Clock.Now()

	exploitability := s.Exploitability()
	logger.Info("starting solve",
		"iterations", s.cfg.Iterations,
		"algorithm", string(s.cfg.Algorithm),
		"threads", s.cfg.Threads,
		"exploitability", exploitability)

	var enc *json.Encoder
	if s.cfg.ProgressWriter != nil {
		enc = json.NewEncoder(s.cfg.ProgressWriter)
	}

	for i := 0; i < s.cfg.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return exploitability, err
		}
		for player := 0; player < 2; player++ {
			s.cfr(player, s.tree.Root, reach[1-player], i, s.initialBoard, 0)
		}

		if s.cfg.PrintInterval == 0 || i%s.cfg.PrintInterval != 0 || i == 0 || i < s.cfg.Warmup {
			continue
		}
		exploitability = s.Exploitability()
		elapsed := s.cfg.Clock.Since(start)
		logger.Info("iteration",
			"iteration", i,
			"exploitability", exploitability,
			"elapsed", elapsed)
		if enc != nil {
			entry := progressEntry{Iteration: i, Exploitability: exploitability, TimeMs: elapsed.Milliseconds()}
			if err := enc.Encode(entry); err != nil {
				return exploitability, fmt.Errorf("write progress: %w", err)
			}
		}
		if exploitability <= s.cfg.Accuracy {
			logger.Info("converged", "iteration", i, "exploitability", exploitability)
			return exploitability, nil
		}
	}
	return exploitability, nil
}
