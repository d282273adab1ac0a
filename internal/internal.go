// Package internal provides helpers shared by the substrate, worklist, and
// speculative packages. It is not part of this module's public API.
package internal

import (
	"fmt"
	"runtime/debug"
)

// Batch is a half-open [Low, High) slice of a partitioned range.
type Batch struct {
	Low, High int
}

// Partition splits the half-open range [low, high) into at most n
// contiguous batches of ceil((high-low)/n) elements each, the last of which
// may be shorter; an empty range yields no batches. It panics if high < low
// or n <= 0.
//
// This is the same batch-size arithmetic a binary fan-out recomputes at
// every level of its recursion to locate a midpoint, generalized to hand
// back all of the batch boundaries at once since substrate.Range.Partition
// needs them together rather than one midpoint at a time.
func Partition(low, high, n int) []Batch {
	if high < low {
		panic(fmt.Sprintf("invalid range: %v:%v", low, high))
	}
	if n <= 0 {
		panic(fmt.Sprintf("invalid number of batches: %v", n))
	}
	size := high - low
	if size == 0 {
		return nil
	}
	if n > size {
		n = size
	}
	batchSize := ((size - 1) / n) + 1
	batches := make([]Batch, 0, n)
	for lo := low; lo < high; lo += batchSize {
		hi := lo + batchSize
		if hi > high {
			hi = high
		}
		batches = append(batches, Batch{Low: lo, High: hi})
	}
	return batches
}

// WrapPanic adds stack trace information to a recovered panic.
func WrapPanic(p interface{}) interface{} {
	if p != nil {
		if err, isError := p.(error); isError {
			return fmt.Errorf("%w\n%s\nrethrown at", err, debug.Stack())
		}
		return fmt.Sprintf("%v\n%s\nrethrown at", p, debug.Stack())
	}
	return nil
}
