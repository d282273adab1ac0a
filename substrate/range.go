package substrate

import "github.com/jiaweixiao/Galois/internal"

// Range is a half-open integer interval [Low, High), the Go analogue of an
// iterator pair. The executor uses a Range of indices to slice its input
// items; worklists receive those item slices in PushInitial, never a Range.
type Range struct {
	Low, High int
}

// NewRange constructs the half-open range [low, high). It panics if
// high < low.
func NewRange(low, high int) Range {
	if high < low {
		panic("substrate: invalid range: high < low")
	}
	return Range{Low: low, High: high}
}

// Len reports the number of elements in the range.
func (r Range) Len() int { return r.High - r.Low }

// Partition splits the range into at most n contiguous local ranges of
// ceil(Len()/n) elements each (the last may be shorter), at most one per
// worker thread; an empty range yields none. The executor seeds each
// thread's PushInitial call with the items in that thread's range.
func (r Range) Partition(n int) []Range {
	batches := internal.Partition(r.Low, r.High, n)
	out := make([]Range, len(batches))
	for i, b := range batches {
		out[i] = Range{Low: b.Low, High: b.High}
	}
	return out
}
