package substrate

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"
)

// DefaultThreadsPerPackage is the synthetic package size used when a
// ThreadPool is not given an explicit topology via WithPackages. Go exposes
// no portable way to query real NUMA/cache topology without cgo, so package
// membership here is a deterministic, documented approximation rather than
// an accurate hardware read-out; callers that care about real escalation
// behavior should set it explicitly.
const DefaultThreadsPerPackage = 4

// Option configures a ThreadPool.
type Option func(*ThreadPool)

// WithPackages fixes the number of packages threads are grouped into,
// overriding the DefaultThreadsPerPackage heuristic.
func WithPackages(n int) Option {
	return func(tp *ThreadPool) {
		if n < 1 {
			n = 1
		}
		tp.numPackages = n
	}
}

// WithLogger attaches a diagnostic logger to the pool. ForEach and OnEach
// runs on the pool log through it unless given a logger of their own.
func WithLogger(logger zerolog.Logger) Option {
	return func(tp *ThreadPool) { tp.logger = logger }
}

// WithAutoMaxProcs calls go.uber.org/automaxprocs's maxprocs.Set before the
// pool's thread count is finalized, so a caller that passes n <= 0 to
// NewThreadPool (meaning "default to GOMAXPROCS") gets a GOMAXPROCS that
// already reflects a container CPU quota rather than the host's full core
// count.
func WithAutoMaxProcs() Option {
	return func(tp *ThreadPool) { tp.autoMaxProcs = true }
}

// ThreadPool is a fixed-size pool of worker goroutines with a package/leader
// topology, the Go realization of the Galois runtime's Substrate::ThreadPool.
// The pool's size and topology are fixed for its lifetime; ForEach and OnEach
// each run one parallel region over the same pool via Run.
type ThreadPool struct {
	numThreads        int
	numPackages       int
	threadsPerPackage int
	autoMaxProcs      bool
	logger            zerolog.Logger
}

// NewThreadPool constructs a pool of n worker threads. If n <= 0, it
// defaults to runtime.GOMAXPROCS(0) (after WithAutoMaxProcs runs, if given).
func NewThreadPool(n int, opts ...Option) *ThreadPool {
	tp := &ThreadPool{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(tp)
	}
	if tp.autoMaxProcs {
		undo, err := maxprocs.Set(maxprocs.Logger(func(format string, a ...interface{}) {
			tp.logger.Debug().Msg(fmt.Sprintf(format, a...))
		}))
		if err != nil {
			tp.logger.Warn().Err(err).Msg("automaxprocs: failed to set GOMAXPROCS")
		} else {
			defer undo()
		}
	}
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n < 1 {
		n = 1
	}
	tp.numThreads = n
	if tp.numPackages == 0 {
		tp.numPackages = (n + DefaultThreadsPerPackage - 1) / DefaultThreadsPerPackage
		if tp.numPackages < 1 {
			tp.numPackages = 1
		}
	}
	tp.threadsPerPackage = (n + tp.numPackages - 1) / tp.numPackages
	return tp
}

// ActiveThreads returns the number of worker threads in the pool, read once
// before a call starts via the thread pool's activeThreads and held fixed
// for that call's duration.
func (tp *ThreadPool) ActiveThreads() int { return tp.numThreads }

// MaxPackages returns the number of packages threads are grouped into. The
// AbortHandler escalation policy is selected from this value.
func (tp *ThreadPool) MaxPackages() int { return tp.numPackages }

// Package returns the package a thread belongs to.
func (tp *ThreadPool) Package(tid int) int { return tid / tp.threadsPerPackage }

// LeaderForPackage returns the thread id that leads the given package. pkg
// is clamped into [0, MaxPackages()-1].
func (tp *ThreadPool) LeaderForPackage(pkg int) int {
	if pkg < 0 {
		pkg = 0
	}
	if pkg >= tp.numPackages {
		pkg = tp.numPackages - 1
	}
	leader := pkg * tp.threadsPerPackage
	if leader >= tp.numThreads {
		leader = tp.numThreads - 1
	}
	return leader
}

// IsLeader reports whether tid is the leader of its package.
func (tp *ThreadPool) IsLeader(tid int) bool {
	return tid == tp.LeaderForPackage(tp.Package(tid))
}

// Logger returns the pool's diagnostic logger.
func (tp *ThreadPool) Logger() zerolog.Logger { return tp.logger }

// Run launches fn once per thread (tid in [0, ActiveThreads())) and waits for
// all of them to return. The first non-nil error returned by any fn
// invocation is remembered and returned from Run once every invocation has
// returned; every other invocation still runs to completion. fn receives a
// context derived from ctx that is canceled the moment any invocation
// returns a non-nil error, so siblings still in flight can observe a
// failure and wind down without waiting for ctx itself to be canceled.
//
// Threads are launched via a binary fan-out (launch the right half in a
// goroutine, recurse into the left half) rather than as numThreads flat
// goroutines, a halving trick that keeps goroutine creation NUMA/GC
// friendly; here it amortizes the cost of launching long-lived worker
// goroutines instead of one-shot thunks.
func (tp *ThreadPool) Run(ctx context.Context, fn func(tid int, ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	var launch func(lo, hi int)
	launch = func(lo, hi int) {
		switch n := hi - lo; {
		case n <= 0:
			return
		case n == 1:
			g.Go(func() error { return fn(lo, gctx) })
		default:
			mid := lo + n/2
			g.Go(func() error {
				launch(mid, hi)
				return nil
			})
			launch(lo, mid)
		}
	}
	launch(0, tp.numThreads)
	return g.Wait()
}
