// Package speculative implements the worklist-driven speculative for-each
// executor: ForEach runs an Operator over every item reachable from a seed
// range, across a fixed pool of worker threads, detecting and retrying
// conflicts between concurrently executing iterations; OnEach runs a plain
// function once per worker thread with no worklist or conflict detection.
//
// This is the Go realization of the Galois runtime's
// Runtime::ForEachExecutor / Runtime::for_each and Runtime::on_each_impl.
package speculative
