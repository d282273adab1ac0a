package speculative

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/jiaweixiao/Galois/gsync"
	"github.com/jiaweixiao/Galois/internal"
	"github.com/jiaweixiao/Galois/substrate"
	"github.com/jiaweixiao/Galois/txn"
	"github.com/jiaweixiao/Galois/worklist"
)

// Operator is the unit of work ForEach applies to every item: it is handed
// the item and a UserFacing through which it pushes new work, allocates
// scratch memory, or requests an early break. An operator that detects a
// conflict (typically via a failed txn.ConflictContext.Acquire) must return
// that error immediately without applying any of its own side effects the
// executor cannot see and roll back — nothing unwinds the operator's stack
// for it.
type Operator[T any] func(item T, facing *UserFacing[T]) error

// Result summarizes one ForEach call: the merged Counters plus whether the
// loop exited early, via UserFacing.Break, ctx cancelation, or an operator
// failure or panic.
type Result struct {
	Iterations uint64
	Commits    uint64
	Conflicts  uint64
	Pushes     uint64
	Broke      bool
}

// threadLocalState is everything one worker thread owns for the duration of
// a ForEach call — nothing in here is touched by any other thread, which is
// what lets Counters be plain uint64s instead of atomics.
type threadLocalState[T any] struct {
	tid      int
	ctx      *txn.ConflictContext
	facing   UserFacing[T]
	counters Counters
}

// executor runs one ForEach call across a fixed thread pool. It is built
// fresh by every ForEach call and discarded once that call returns; the
// shared worklist, abort handler, termination detector, and barrier it owns
// are torn down along with it.
type executor[T any] struct {
	cfg *Config[T]
	op  Operator[T]

	pool    *substrate.ThreadPool
	wl      worklist.Worklist[T]
	aborted *AbortHandler[T]
	term    *substrate.TerminationGroup
	barrier *substrate.Barrier

	arenaPool *gsync.Pool[Arena]

	couldAbort bool
	broke      atomic.Bool

	tls   *substrate.PerThread[*threadLocalState[T]]
	seeds [][]T
}

func newExecutor[T any](cfg *Config[T], op Operator[T], items []T) *executor[T] {
	pool := cfg.pool
	n := pool.ActiveThreads()

	e := &executor[T]{
		cfg:        cfg,
		op:         op,
		pool:       pool,
		wl:         cfg.newWorklist(),
		term:       substrate.NewTerminationDetector(n),
		barrier:    substrate.NewBarrier(n),
		couldAbort: cfg.needsAborts && n > 1,
	}
	if cfg.needsAborts {
		e.aborted = newAbortHandler[T](pool, cfg.escalation)
	}
	if cfg.needsPia {
		e.arenaPool = &gsync.Pool[Arena]{New: func() *Arena { return &Arena{} }}
	}
	e.tls = substrate.NewPerThread[*threadLocalState[T]](n, func(int) *threadLocalState[T] { return nil })
	e.buildSeeds(items)
	return e
}

func (e *executor[T]) buildSeeds(items []T) {
	n := e.pool.ActiveThreads()
	parts := substrate.NewRange(0, len(items)).Partition(n)
	e.seeds = make([][]T, n)
	for i, r := range parts {
		e.seeds[i] = items[r.Low:r.High]
	}
}

func (e *executor[T]) seedFor(tid int) []T {
	if tid < len(e.seeds) {
		return e.seeds[tid]
	}
	return nil
}

// run launches one goroutine per pool thread via pool.Run and blocks until
// all of them exit.
func (e *executor[T]) run(ctx context.Context) error {
	logger := e.cfg.logger
	logger.Info().Str("loop", e.cfg.loopName).Int("threads", e.pool.ActiveThreads()).Msg("for_each: starting")
	err := e.pool.Run(ctx, e.goWorker)
	logger.Info().Str("loop", e.cfg.loopName).Bool("broke", e.broke.Load()).Err(err).Msg("for_each: finished")
	return err
}

func (e *executor[T]) mergeCounters() Counters {
	var totals Counters
	for tid := 0; tid < e.tls.Len(); tid++ {
		if tls := *e.tls.Local(tid); tls != nil {
			totals.Iterations += tls.counters.Iterations
			totals.Conflicts += tls.counters.Conflicts
			totals.Pushes += tls.counters.Pushes
		}
	}
	return totals
}

// goWorker wraps runWorker with the panic recovery the C++ runtime's thread
// entry point gets from its surrounding try/catch: a panicking operator
// must not take the whole process down with it, and must still let its
// sibling threads observe a break so they wind down too.
func (e *executor[T]) goWorker(tid int, ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			e.broke.Store(true)
			err = wrapOperatorFailure(internal.WrapPanic(p))
		}
	}()
	if rerr := e.runWorker(ctx, tid); rerr != nil {
		e.broke.Store(true)
		return &OperatorError{Err: rerr}
	}
	return nil
}

func (e *executor[T]) runWorker(ctx context.Context, tid int) error {
	tls := &threadLocalState[T]{tid: tid}
	if e.cfg.needsAborts {
		tls.ctx = &txn.ConflictContext{}
		tls.facing.ctx = tls.ctx
	}
	if e.cfg.needsPia {
		tls.facing.arenaPool = e.arenaPool
	}
	if e.cfg.needsBreak {
		tls.facing.breakFlag = &e.broke
	}
	if e.cfg.needsPush && !e.couldAbort {
		tls.facing.fastPushBack = func(items []T) { e.wl.PushAll(items) }
	}
	*e.tls.Local(tid) = tls

	term := e.term.ForThread(tid)
	term.InitializeThread()

	e.wl.PushInitial(tid, e.seedFor(tid))

	isLeader := e.pool.IsLeader(tid)

	for {
		var oldIterations uint64
		for {
			var err error
			switch {
			case e.couldAbort || e.cfg.needsBreak:
				limit := 0
				if isLeader || e.cfg.needsBreak {
					limit = 64
				}
				err = e.runQueue(tls, limit)
				if err == nil && e.couldAbort {
					err = e.handleAborts(tls)
				}
			default:
				err = e.runQueueSimple(tls)
			}
			if err != nil {
				return err
			}

			didWork := tls.counters.Iterations != oldIterations
			oldIterations = tls.counters.Iterations
			term.LocalTermination(didWork)
			runtime.Gosched()

			if term.GlobalTermination() {
				break
			}
			if e.broke.Load() {
				break
			}
			if ctxDone(ctx) {
				e.broke.Store(true)
				break
			}
		}

		empty := true
		if hinter, ok := e.wl.(worklist.EmptyHinter); ok {
			empty = hinter.Empty()
		}
		if empty || e.broke.Load() {
			break
		}
		term.InitializeThread()
		e.barrier.Wait()
	}
	return nil
}

// runQueue pops and processes items from the shared worklist, up to limit
// pops (0 meaning unbounded), stopping the moment a single iteration
// conflicts — mirroring the Galois runtime's try/catch around its pop loop:
// one conflict unwinds the whole call, not just the conflicting iteration,
// and control returns to the caller's round loop rather than resuming the
// drain. A non-conflict error is an operator failure and is returned as-is.
func (e *executor[T]) runQueue(tls *threadLocalState[T], limit int) error {
	num := 0
	for limit == 0 || num < limit {
		item, ok := e.wl.Pop()
		if !ok {
			return nil
		}
		num++
		if err := e.doProcess(tls, item); err != nil {
			if errors.Is(err, txn.ErrConflict) {
				e.abortIteration(tls, item)
				return nil
			}
			return err
		}
	}
	return nil
}

// runQueueSimple is the fast path used when couldAbort is false (needsAborts
// not declared, or a single-thread pool) and needsBreak is not declared: no
// conflicts are possible, so there is nothing to catch and the whole
// worklist can be drained in one pass.
func (e *executor[T]) runQueueSimple(tls *threadLocalState[T]) error {
	for {
		item, ok := e.wl.Pop()
		if !ok {
			return nil
		}
		if err := e.doProcess(tls, item); err != nil {
			return err
		}
	}
}

// handleAborts retries items from tid's own AbortedList queue, with the same
// catch-one-then-return semantics as runQueue: an item that conflicts again
// is escalated per the AbortHandler's policy and handleAborts returns
// immediately, leaving the rest of the local retry queue for the next round.
func (e *executor[T]) handleAborts(tls *threadLocalState[T]) error {
	for {
		aitem, ok := e.aborted.popLocal(tls.tid)
		if !ok {
			return nil
		}
		if err := e.doProcess(tls, aitem.val); err != nil {
			if errors.Is(err, txn.ErrConflict) {
				e.cancelAndReset(tls)
				e.aborted.push(tls.tid, aitem)
				return nil
			}
			return err
		}
	}
}

func (e *executor[T]) doProcess(tls *threadLocalState[T], item T) error {
	if e.cfg.needsAborts {
		tls.ctx.StartIteration()
	}
	tls.counters.Iterations++
	if err := e.op(item, &tls.facing); err != nil {
		return err
	}
	e.commitIteration(tls)
	return nil
}

func (e *executor[T]) commitIteration(tls *threadLocalState[T]) {
	if e.cfg.needsPush {
		n := len(tls.facing.pushBuffer)
		if n > 0 {
			e.wl.PushAll(tls.facing.pushBuffer)
			tls.counters.Pushes += uint64(n)
			tls.facing.resetPushBuffer()
		}
	}
	if e.cfg.needsPia {
		tls.facing.resetAlloc()
	}
	if e.cfg.needsAborts {
		tls.ctx.CommitIteration()
	}
}

func (e *executor[T]) cancelAndReset(tls *threadLocalState[T]) {
	tls.ctx.CancelIteration()
	tls.counters.Conflicts++
	if e.cfg.needsPush {
		tls.facing.resetPushBuffer()
	}
	if e.cfg.needsPia {
		tls.facing.resetAlloc()
	}
}

func (e *executor[T]) abortIteration(tls *threadLocalState[T], item T) {
	e.cancelAndReset(tls)
	e.aborted.pushFresh(tls.tid, item)
}

func ctxDone(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
