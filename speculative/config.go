package speculative

import (
	"github.com/rs/zerolog"

	"github.com/jiaweixiao/Galois/substrate"
	"github.com/jiaweixiao/Galois/worklist"
)

// Config holds everything ForEach needs beyond the pool, the seed items, and
// the operator itself — a set of trait flags plus the pieces (worklist
// constructor, stats sink, escalation policy, logger) the Galois runtime
// instead derives from template parameters and global state.
//
// The C++ runtime infers most of these traits from which marker types an
// operator's function_traits declares. Go has no equivalent of deducing
// traits from a plain func value's type, so they are explicit Options here
// instead — defaulted the way the Galois runtime itself defaults a for_each
// call that declares no traits at all (see the With* doc comments).
type Config[T any] struct {
	pool *substrate.ThreadPool

	loopName    string
	newWorklist func() worklist.Worklist[T]
	escalation  EscalationPolicy

	needsAborts bool
	needsPush   bool
	needsPia    bool
	needsBreak  bool
	needsStats  bool

	stats  Stats
	logger zerolog.Logger
}

// Option configures a Config. Options are applied in the order given to
// ForEach, so a later option overrides an earlier one that touches the same
// field.
type Option[T any] func(*Config[T])

func newConfig[T any](pool *substrate.ThreadPool) *Config[T] {
	logger := zerolog.Nop()
	if pool != nil {
		logger = pool.Logger()
	}
	return &Config[T]{
		pool:        pool,
		needsAborts: true,
		needsPush:   true,
		needsStats:  true,
		logger:      logger,
	}
}

func (c *Config[T]) validate() error {
	if c.pool == nil {
		return &ConfigError{Reason: "no thread pool configured"}
	}
	if c.pool.ActiveThreads() < 1 {
		return &ConfigError{Reason: "thread pool has no active threads"}
	}
	if c.escalation < PolicyAuto || c.escalation > PolicyEager {
		return &ConfigError{Reason: "unknown escalation policy"}
	}
	if c.loopName == "" {
		c.loopName = "unnamed"
	}
	if c.newWorklist == nil {
		c.newWorklist = func() worklist.Worklist[T] {
			return worklist.NewChunkedFIFO[T](worklist.DefaultChunkSize)
		}
	}
	if c.needsStats && c.stats == nil {
		c.stats = NewLogStats(c.logger)
	}
	return nil
}

// WithLoopName attaches a name to the run, used only for logging and stats
// labels.
func WithLoopName[T any](name string) Option[T] {
	return func(c *Config[T]) { c.loopName = name }
}

// WithLogger attaches a diagnostic logger, overriding the one the thread
// pool was built with.
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return func(c *Config[T]) { c.logger = logger }
}

// WithWorklist overrides the default chunked-FIFO worklist with factory,
// called once per ForEach call to build the shared worklist instance.
func WithWorklist[T any](factory func() worklist.Worklist[T]) Option[T] {
	return func(c *Config[T]) { c.newWorklist = factory }
}

// WithStats overrides the default log-based Stats sink.
func WithStats[T any](s Stats) Option[T] {
	return func(c *Config[T]) {
		c.stats = s
		c.needsStats = true
	}
}

// WithoutStats disables statistics reporting: the Stats sink is never
// called. Per-thread counters are still kept and merged, since Result
// reports them.
func WithoutStats[T any]() Option[T] {
	return func(c *Config[T]) { c.needsStats = false }
}

// WithAborts declares whether iterations of this operator can conflict and
// need speculative rollback. It defaults to true (the safe default: an
// operator that never calls ConflictContext.Acquire never actually aborts,
// even with this enabled, it just pays for a bookkeeping check it didn't
// need). Set it to false only when the operator is known never to conflict,
// to take the cheaper runQueueSimple path and unlock UserFacing.PushBack's
// fast path.
func WithAborts[T any](v bool) Option[T] {
	return func(c *Config[T]) { c.needsAborts = v }
}

// WithPush declares whether the operator ever calls UserFacing.Push or
// PushBack. It defaults to true.
func WithPush[T any](v bool) Option[T] {
	return func(c *Config[T]) { c.needsPush = v }
}

// WithPerIterationAlloc enables UserFacing.Alloc's scratch arena. It
// defaults to false: allocating and resetting an arena every iteration costs
// something even when the operator never calls Alloc.
func WithPerIterationAlloc[T any](v bool) Option[T] {
	return func(c *Config[T]) { c.needsPia = v }
}

// WithBreak enables UserFacing.Break and bounds each pass over the worklist
// to 64 pops, so the worker loop observes a break between passes. It
// defaults to false.
func WithBreak[T any](v bool) Option[T] {
	return func(c *Config[T]) { c.needsBreak = v }
}

// WithEscalationPolicy overrides the AbortHandler's escalation policy,
// which otherwise defaults to PolicyAuto.
func WithEscalationPolicy[T any](p EscalationPolicy) Option[T] {
	return func(c *Config[T]) { c.escalation = p }
}
