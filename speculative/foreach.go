package speculative

import (
	"context"

	"github.com/jiaweixiao/Galois/substrate"
)

// ForEach runs op over every item in items and every item op pushes via
// UserFacing, across pool's worker threads, until the worklist is
// quiescent. It returns once every worker thread has exited: on operator
// failure every thread still runs to completion before the first failure is
// returned wrapped in *OperatorError.
//
// ctx is checked at the same points UserFacing.Break is checked; canceling
// it requests the same cooperative, round-boundary shutdown a Break does,
// not an immediate stop.
func ForEach[T any](ctx context.Context, pool *substrate.ThreadPool, items []T, op Operator[T], opts ...Option[T]) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := newConfig[T](pool)
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.validate(); err != nil {
		return Result{}, err
	}

	exec := newExecutor(cfg, op, items)
	runErr := exec.run(ctx)

	totals := exec.mergeCounters()
	result := Result{
		Iterations: totals.Iterations,
		Commits:    totals.Commits(),
		Conflicts:  totals.Conflicts,
		Pushes:     totals.Pushes,
		Broke:      exec.broke.Load(),
	}

	if cfg.needsStats {
		cfg.stats.Emit(cfg.loopName, totals)
	}

	return result, runErr
}
