package speculative

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiaweixiao/Galois/substrate"
)

func TestOnEachRunsOncePerThread(t *testing.T) {
	pool := substrate.NewThreadPool(4)
	var calls atomic.Int64
	seen := make([]atomic.Bool, 4)

	err := OnEach(context.Background(), pool, func(tid, numThreads int) {
		calls.Add(1)
		require.Equal(t, 4, numThreads)
		seen[tid].Store(true)
	})
	require.NoError(t, err)
	require.EqualValues(t, 4, calls.Load())
	for tid := range seen {
		require.Truef(t, seen[tid].Load(), "thread %d never ran", tid)
	}
}

func TestOnEachRecoversPanic(t *testing.T) {
	pool := substrate.NewThreadPool(2)
	err := OnEach(context.Background(), pool, func(tid, numThreads int) {
		if tid == 0 {
			panic("boom")
		}
	})
	require.Error(t, err)
	var opErr *OperatorError
	require.ErrorAs(t, err, &opErr)
}
