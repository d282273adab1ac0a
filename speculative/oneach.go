package speculative

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jiaweixiao/Galois/internal"
	"github.com/jiaweixiao/Galois/substrate"
)

// onEachConfig is OnEach's much smaller analogue of Config: OnEach has no
// worklist, no conflicts, and no push buffer, so it needs only a name and a
// logger.
type onEachConfig struct {
	loopName string
	logger   zerolog.Logger
}

// OnEachOption configures OnEach.
type OnEachOption func(*onEachConfig)

// OnEachLoopName attaches a name to the run, used only for logging.
func OnEachLoopName(name string) OnEachOption {
	return func(c *onEachConfig) { c.loopName = name }
}

// OnEachLogger attaches a diagnostic logger, overriding the one the thread
// pool was built with.
func OnEachLogger(logger zerolog.Logger) OnEachOption {
	return func(c *onEachConfig) { c.logger = logger }
}

// OnEach runs fn once per thread in pool, passing each invocation its own
// thread id and the pool's total thread count, and waits for every
// invocation to return. There is no worklist, no speculation, and no
// conflict detection — just one call per thread.
//
// A panic from fn is recovered and returned as an *OperatorError rather than
// crashing the process, exactly as ForEach recovers a panicking operator.
func OnEach(ctx context.Context, pool *substrate.ThreadPool, fn func(tid, numThreads int), opts ...OnEachOption) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := &onEachConfig{logger: pool.Logger()}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.loopName == "" {
		cfg.loopName = "unnamed"
	}

	numThreads := pool.ActiveThreads()
	cfg.logger.Info().Str("loop", cfg.loopName).Int("threads", numThreads).Msg("on_each: starting")

	err := pool.Run(ctx, func(tid int, _ context.Context) (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = wrapOperatorFailure(internal.WrapPanic(p))
			}
		}()
		fn(tid, numThreads)
		return nil
	})

	cfg.logger.Info().Str("loop", cfg.loopName).Err(err).Msg("on_each: finished")
	return err
}
