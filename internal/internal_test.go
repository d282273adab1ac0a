package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPartitionCoversRangeExactlyOnce(t *testing.T) {
	for _, tc := range []struct{ low, high, n int }{
		{0, 1000, 7},
		{0, 1, 4},
		{5, 5, 3},
		{0, 100, 1},
	} {
		batches := Partition(tc.low, tc.high, tc.n)
		next := tc.low
		for _, b := range batches {
			require.Equalf(t, next, b.Low, "gap or overlap in partition of [%d,%d)", tc.low, tc.high)
			require.GreaterOrEqualf(t, b.High, b.Low, "invalid batch %+v", b)
			next = b.High
		}
		require.Equalf(t, tc.high, next, "partition of [%d,%d) stopped early", tc.low, tc.high)
	}
}

func TestPartitionPanicsOnInvalidRange(t *testing.T) {
	require.Panics(t, func() { Partition(10, 5, 2) })
}

func TestWrapPanicAddsStack(t *testing.T) {
	require.Nil(t, WrapPanic(nil))
	wrapped := WrapPanic("boom")
	s, ok := wrapped.(string)
	require.Truef(t, ok, "expected string, got %T", wrapped)
	require.Greater(t, len(s), len("boom"), "expected stack trace to be appended")
}
