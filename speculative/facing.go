package speculative

import (
	"sync/atomic"

	"github.com/jiaweixiao/Galois/gsync"
	"github.com/jiaweixiao/Galois/txn"
)

// UserFacing is the handle an Operator receives alongside its item: the
// only way an operator pushes new work, allocates per-iteration scratch
// memory, or requests early termination. A UserFacing is reused across
// iterations on the same thread; the executor resets it between iterations
// rather than allocating a fresh one.
type UserFacing[T any] struct {
	pushBuffer []T

	ctx *txn.ConflictContext

	arenaPool *gsync.Pool[Arena]
	arena     *Arena

	breakFlag *atomic.Bool

	// fastPushBack, when non-nil, lets PushBack bypass pushBuffer and spill
	// straight into the worklist. It is only installed when the executor
	// knows aborts are impossible for this run (needsAborts disabled, or a
	// single-thread run): an item pushed straight into the worklist can never
	// be un-pushed, so this path is unsafe whenever the current iteration
	// might still abort.
	fastPushBack func(items []T)
}

// Push enqueues item to be pushed into the worklist once the current
// iteration commits. Pushed items are buffered and discarded if the
// iteration instead aborts.
func (f *UserFacing[T]) Push(item T) {
	f.pushBuffer = append(f.pushBuffer, item)
}

// PushBack behaves like Push, but takes the fast path directly into the
// worklist when the executor has determined it is safe to do so (see
// fastPushBack). It reports whether the fast path was taken; when it
// reports false, the item was buffered exactly as Push would have buffered
// it, so callers never need to fall back manually.
func (f *UserFacing[T]) PushBack(item T) bool {
	if f.fastPushBack == nil {
		f.Push(item)
		return false
	}
	f.fastPushBack([]T{item})
	return true
}

// Alloc returns the iteration's scratch arena, or nil if the executor was
// not configured with per-iteration allocation enabled (WithPerIterationAlloc).
// The arena is reset and returned to its pool when the iteration commits or
// aborts; memory obtained from it must not be retained past the iteration.
func (f *UserFacing[T]) Alloc() *Arena {
	if f.arenaPool == nil {
		return nil
	}
	if f.arena == nil {
		f.arena = f.arenaPool.Get()
	}
	return f.arena
}

// Acquire attempts to take logical ownership of l for the current
// iteration, the only way an operator participates in conflict detection.
// It returns txn.ErrConflict if l is already owned by a concurrently
// executing iteration; the operator must return that error immediately so
// the executor can roll the iteration back. If the executor was configured
// with WithAborts(false), Acquire always succeeds: there is no
// ConflictContext to contend over.
func (f *UserFacing[T]) Acquire(l *txn.Lockable) error {
	if f.ctx == nil {
		return nil
	}
	return f.ctx.Acquire(l)
}

// Break requests that the loop stop after the current round of iterations,
// if the executor was configured with WithBreak(true). It is a no-op
// otherwise.
func (f *UserFacing[T]) Break() {
	if f.breakFlag != nil {
		f.breakFlag.Store(true)
	}
}

func (f *UserFacing[T]) resetPushBuffer() {
	f.pushBuffer = f.pushBuffer[:0]
}

func (f *UserFacing[T]) resetAlloc() {
	if f.arena != nil {
		f.arena.reset()
		f.arenaPool.Put(f.arena)
		f.arena = nil
	}
}

// Arena is a per-iteration bump allocator. Memory obtained from Alloc is
// valid only until the iteration that obtained it commits or aborts.
type Arena struct {
	buf []byte
}

// Alloc returns a zeroed n-byte slice drawn from the arena.
func (a *Arena) Alloc(n int) []byte {
	a.buf = append(a.buf, make([]byte, n)...)
	return a.buf[len(a.buf)-n:]
}

func (a *Arena) reset() { a.buf = a.buf[:0] }
