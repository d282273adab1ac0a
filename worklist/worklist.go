package worklist

// Worklist is the pluggable container the speculative executor pulls items
// from. Implementations MUST make Push and Pop safe for concurrent use by
// any thread, and Pop MUST be non-blocking — returning (zero, false) when
// nothing is available right now rather than parking; the core treats a
// blocking pop as forbidden.
type Worklist[T any] interface {
	// Push enqueues a single item. Safe to call from any thread.
	Push(item T)
	// PushAll enqueues items in order, semantically equivalent to a loop of
	// Push but may be more efficient for implementations that batch by
	// chunk.
	PushAll(items []T)
	// Pop removes and returns an item, or reports ok=false if none is
	// available right now. Never blocks.
	Pop() (item T, ok bool)
	// PushInitial seeds the worklist with one thread's local partition of
	// the input range, called once per thread during startup.
	PushInitial(tid int, items []T)
}

// EmptyHinter is an optional empty() hook. The executor probes for it via a
// type assertion after global quiescence; a Worklist that does not implement
// it is treated as empty at that point, so the worker loop exits.
type EmptyHinter interface {
	Empty() bool
}

// Lenner is an optional size hint, useful for diagnostics and tests.
type Lenner interface {
	Len() int
}
