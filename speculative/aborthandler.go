package speculative

import (
	"github.com/jiaweixiao/Galois/substrate"
	"github.com/jiaweixiao/Galois/worklist"
)

// EscalationPolicy selects how a repeatedly-aborting item is re-queued after
// it aborts again from the per-thread AbortedList. Every policy eventually
// lands the item on a queue shared with more
// threads, so a persistently conflicting item keeps widening its retry
// audience instead of spinning forever against the same contender.
type EscalationPolicy int

const (
	// PolicyAuto selects PolicyBasic when the pool has 2 or fewer packages,
	// PolicyDouble otherwise — the Galois runtime's own default, since
	// PolicyDouble's extra escalation step only pays for itself once there
	// are enough packages to make the first hop (to a same-half neighbor)
	// worthwhile.
	PolicyAuto EscalationPolicy = iota
	// PolicyBasic always escalates straight to the leader of half the
	// current package's containing group.
	PolicyBasic
	// PolicyDouble alternates between retrying locally and escalating by
	// package, widening its audience by a factor of two at a time.
	PolicyDouble
	// PolicyBounded retries locally for the first two retries, then moves
	// the item halfway toward its package leader while it has retried fewer
	// than five times and the thread is not the leader, and from then on
	// escalates to the leader of package pkg/2.
	PolicyBounded
	// PolicyEager always retries on the aborting thread's own local queue,
	// never escalating. Cheapest per retry, but gives a persistently
	// conflicting item no chance to get out from under whatever is
	// conflicting with it locally.
	PolicyEager
)

// abortedItem is one entry on a per-thread retry queue: the item itself plus
// how many times it has aborted, which the escalation policies branch on.
type abortedItem[T any] struct {
	val     T
	retries int
}

// AbortHandler is the Go realization of the Galois runtime's AbortHandler: a
// per-thread set of retry queues for items whose iteration aborted, plus the
// escalation policy that decides which thread's queue a re-aborting item
// lands on next.
type AbortHandler[T any] struct {
	pool   *substrate.ThreadPool
	queues *substrate.PerThread[*worklist.SimpleFIFO[abortedItem[T]]]
	policy EscalationPolicy
}

// newAbortHandler constructs an AbortHandler for pool. policy is resolved
// immediately: PolicyAuto never appears in h.policy after construction.
func newAbortHandler[T any](pool *substrate.ThreadPool, policy EscalationPolicy) *AbortHandler[T] {
	resolved := policy
	if resolved == PolicyAuto {
		if pool.MaxPackages() <= 2 {
			resolved = PolicyBasic
		} else {
			resolved = PolicyDouble
		}
	}
	queues := substrate.NewPerThread[*worklist.SimpleFIFO[abortedItem[T]]](pool.ActiveThreads(), func(int) *worklist.SimpleFIFO[abortedItem[T]] {
		return worklist.NewSimpleFIFO[abortedItem[T]]()
	})
	return &AbortHandler[T]{pool: pool, queues: queues, policy: resolved}
}

// pushFresh enqueues an item that just aborted for the first time this
// iteration, onto tid's own local queue with retries reset to 1.
func (h *AbortHandler[T]) pushFresh(tid int, val T) {
	(*h.queues.Local(tid)).Push(abortedItem[T]{val: val, retries: 1})
}

// popLocal removes the next item from tid's own local retry queue.
func (h *AbortHandler[T]) popLocal(tid int) (abortedItem[T], bool) {
	return (*h.queues.Local(tid)).Pop()
}

// push re-queues item, which has just aborted again while being retried
// from thread tid's local queue, per the handler's escalation policy.
func (h *AbortHandler[T]) push(tid int, item abortedItem[T]) {
	oldRetries := item.retries
	item.retries++
	switch h.policy {
	case PolicyBasic:
		h.basicPolicy(tid, item)
	case PolicyBounded:
		h.boundedPolicy(tid, oldRetries, item)
	case PolicyEager:
		h.eagerPolicy(tid, item)
	default:
		h.doublePolicy(tid, oldRetries, item)
	}
}

func (h *AbortHandler[T]) basicPolicy(tid int, item abortedItem[T]) {
	pkg := h.pool.Package(tid)
	target := h.pool.LeaderForPackage(pkg / 2)
	(*h.queues.Remote(target)).Push(item)
}

func (h *AbortHandler[T]) doublePolicy(tid, oldRetries int, item abortedItem[T]) {
	if oldRetries%2 == 1 {
		(*h.queues.Local(tid)).Push(item)
		return
	}
	leader := h.pool.LeaderForPackage(h.pool.Package(tid))
	if tid != leader {
		next := leader + (tid-leader)/2
		(*h.queues.Remote(next)).Push(item)
		return
	}
	pkg := h.pool.Package(tid)
	target := h.pool.LeaderForPackage(pkg / 2)
	(*h.queues.Remote(target)).Push(item)
}

func (h *AbortHandler[T]) boundedPolicy(tid, oldRetries int, item abortedItem[T]) {
	if oldRetries < 2 {
		(*h.queues.Local(tid)).Push(item)
		return
	}
	leader := h.pool.LeaderForPackage(h.pool.Package(tid))
	if oldRetries < 5 && tid != leader {
		next := leader + (tid-leader)/2
		(*h.queues.Remote(next)).Push(item)
		return
	}
	pkg := h.pool.Package(tid)
	target := h.pool.LeaderForPackage(pkg / 2)
	(*h.queues.Remote(target)).Push(item)
}

func (h *AbortHandler[T]) eagerPolicy(tid int, item abortedItem[T]) {
	(*h.queues.Local(tid)).Push(item)
}
