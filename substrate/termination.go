package substrate

import "sync/atomic"

// TerminationDetector implements a two-phase global quiescence protocol:
// each thread reports local activity with LocalTermination, and any thread
// may observe GlobalTermination once every thread has reported quiet.
// InitializeThread rearms a thread's local state for a new round (called
// just before the barrier that starts the next round of work).
type TerminationDetector interface {
	LocalTermination(didWork bool)
	GlobalTermination() bool
	InitializeThread()
}

// TerminationGroup tracks one atomic "active" flag per thread. It trades
// the Galois runtime's NUMA-aware token-color propagation (each thread only
// reads its neighbor's color, to avoid a cross-socket read on every check)
// for a flat array of atomic flags: a single process has no cross-socket
// memory cost to avoid, so GlobalTermination can just sum the flags
// directly — a commit makes the very next GlobalTermination observation
// false, and quiescence is reached once every thread has reported no work.
type TerminationGroup struct {
	active []atomic.Bool
}

// NewTerminationDetector constructs a TerminationGroup shared by numThreads
// workers. Each worker must call ForThread with its own thread id to obtain
// the view it should use.
func NewTerminationDetector(numThreads int) *TerminationGroup {
	td := &TerminationGroup{active: make([]atomic.Bool, numThreads)}
	for i := range td.active {
		td.active[i].Store(true)
	}
	return td
}

// ForThread returns the per-thread view of the shared detector for tid.
func (td *TerminationGroup) ForThread(tid int) TerminationDetector {
	return &threadTermination{shared: td, tid: tid}
}

type threadTermination struct {
	shared *TerminationGroup
	tid    int
}

func (t *threadTermination) LocalTermination(didWork bool) {
	t.shared.active[t.tid].Store(didWork)
}

func (t *threadTermination) GlobalTermination() bool {
	for i := range t.shared.active {
		if t.shared.active[i].Load() {
			return false
		}
	}
	return true
}

func (t *threadTermination) InitializeThread() {
	t.shared.active[t.tid].Store(true)
}
