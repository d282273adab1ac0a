package txn

import (
	"errors"
	"sync/atomic"

	"github.com/jiaweixiao/Galois/gsync"
)

// ErrConflict is returned by Acquire when the logical lock is already owned
// by another thread's context, or when this context has been externally
// marked aborted.
var ErrConflict = errors.New("txn: conflict")

const (
	stateIdle int32 = iota
	stateExecuting
)

// ConflictContext is a per-thread transactional scope. Between
// StartIteration and CommitIteration/CancelIteration, at most one iteration
// is in progress; Acquire records logical lock ownership for the duration of
// that iteration.
type ConflictContext struct {
	state    atomic.Int32
	aborted  atomic.Bool
	acquired []*Lockable
}

// StartIteration transitions the context from idle to executing. It panics
// if the context is already executing, a programmer error rather than a
// recoverable one since it can only happen from a bug in the executor
// itself, never from operator behavior.
func (c *ConflictContext) StartIteration() {
	if !c.state.CompareAndSwap(stateIdle, stateExecuting) {
		panic("txn: StartIteration called while already executing")
	}
	c.aborted.Store(false)
}

// CommitIteration releases every lock acquired during the iteration and
// returns the context to idle. All locks are guaranteed released before
// CommitIteration returns.
func (c *ConflictContext) CommitIteration() {
	c.release()
	c.state.Store(stateIdle)
}

// CancelIteration releases every lock acquired during the iteration,
// clears the aborted flag so the context is safe to reuse, and returns the
// context to idle.
func (c *ConflictContext) CancelIteration() {
	c.release()
	c.aborted.Store(false)
	c.state.Store(stateIdle)
}

// release drops ownership of every Lockable acquired this iteration, in
// reverse acquisition order. Reverse order is an implementation choice, not
// a correctness requirement: Acquire never blocks (it fails immediately on
// contention instead of waiting), so there is no lock-ordering deadlock to
// avoid by releasing in a particular order.
func (c *ConflictContext) release() {
	for i := len(c.acquired) - 1; i >= 0; i-- {
		c.acquired[i].release(c)
	}
	c.acquired = c.acquired[:0]
}

// MarkAborted externally marks the context as aborted; the next Acquire
// call against it fails with ErrConflict. Unused by the single-priority
// for-each executor in this module (which only ever aborts a context from
// within its own thread), but part of the primitive's contract for
// schedulers that preempt based on iteration priority.
func (c *ConflictContext) MarkAborted() { c.aborted.Store(true) }

// Acquire attempts to record ownership of the logical lock l for this
// context. It returns ErrConflict if l is owned by a different context, or
// if this context has been externally marked aborted. Acquiring a lock this
// context already owns is a no-op.
func (c *ConflictContext) Acquire(l *Lockable) error {
	if c.aborted.Load() {
		return ErrConflict
	}
	owner := l.owner.Load()
	if owner == c {
		return nil
	}
	if owner != nil {
		return ErrConflict
	}
	if !l.owner.CompareAndSwap(nil, c) {
		return ErrConflict
	}
	c.acquired = append(c.acquired, l)
	return nil
}

// Lockable is a logical lock: an embeddable field that gives any type CAS'd
// ownership by at most one ConflictContext at a time.
type Lockable struct {
	owner gsync.AtomicPointer[ConflictContext]
}

func (l *Lockable) release(c *ConflictContext) {
	l.owner.CompareAndSwap(c, nil)
}

// Owner returns the context that currently owns l, or nil if unowned.
func (l *Lockable) Owner() *ConflictContext { return l.owner.Load() }
