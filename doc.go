// This module provides a worklist-driven, speculative for-each execution
// runtime for irregular, amorphous data-parallel workloads — work items
// whose number and dependencies are not known in advance, and whose
// processing order therefore cannot be statically scheduled.
//
// It provides the following subpackages:
//
// substrate provides the ThreadPool, Barrier, TerminationDetector, Range,
// and PerThread abstractions the rest of the module is built on.
//
// worklist provides the pluggable container the executor pulls pending
// items from: ChunkedFIFO (the default) and SimpleFIFO.
//
// txn provides ConflictContext and Lockable, the logical-lock primitive
// speculative execution uses to detect when two concurrently executing
// iterations collide.
//
// speculative provides ForEach, the speculative executor itself, and
// OnEach, for running a function once per worker thread with no worklist or
// conflict detection.
//
// gsync provides generic synchronization primitives: a type-safe atomic
// pointer and a type-safe sync.Pool.
package Galois
