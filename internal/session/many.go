package session

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/wavefront-labs/wavebt/internal/simcore"
)

// SummaryResult is one session's outcome within RunMany.
type SummaryResult struct {
	Input   Input
	Summary simcore.SessionSummary
}

// MaxConcurrentSessions bounds how many sessions RunMany drives at once.
const MaxConcurrentSessions = 8

// RunMany runs independent sessions over disjoint (params, window) tuples
// concurrently — each owns its own Ledger and open-positions map, so there
// is no shared mutable state between them. The first ConfigError or
// DataSourceError cancels the rest and is returned; callers that want
// partial results on partial failure should call RunSession directly in a
// loop instead.
func (r *Runner) RunMany(ctx context.Context, inputs []Input) ([]SummaryResult, error) {
	results := make([]SummaryResult, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(MaxConcurrentSessions)

	for i, in := range inputs {
		i, in := i, in
		g.Go(func() error {
			summary, err := r.RunSession(gctx, in)
			if err != nil {
				return err
			}
			results[i] = SummaryResult{Input: in, Summary: summary}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
