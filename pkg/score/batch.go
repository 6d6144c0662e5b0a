package score

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const chunkSize = 512

// All scores the passwords using up to workers goroutines. The result is
// index-aligned with the input. A workers value below 1 uses GOMAXPROCS.
func All(ctx context.Context, passwords []string, workers int) ([]float64, error) {
	scores := make([]float64, len(passwords))
	if len(passwords) == 0 {
		return scores, nil
	}

	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for start := 0; start < len(passwords); start += chunkSize {
		end := min(start+chunkSize, len(passwords))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				scores[i] = Compute(passwords[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return scores, nil
}
