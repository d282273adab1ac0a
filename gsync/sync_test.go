package gsync

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAtomicPointerCompareAndSwap(t *testing.T) {
	a, b := 1, 2
	var p AtomicPointer[int]
	require.Nil(t, p.Load(), "expected nil initial value")
	require.True(t, p.CompareAndSwap(nil, &a), "expected successful CAS from nil")
	require.Same(t, &a, p.Load())
	require.False(t, p.CompareAndSwap(&b, &b), "expected CAS against stale old value to fail")
	old := p.Swap(&b)
	require.Same(t, &a, old, "expected swap to return previous value")
	require.Same(t, &b, p.Load())
}

func TestPoolGetCallsNew(t *testing.T) {
	var created int
	pool := Pool[int]{New: func() *int {
		created++
		v := 0
		return &v
	}}
	x := pool.Get()
	*x = 42
	pool.Put(x)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = pool.Get()
	}()
	wg.Wait()

	require.Greater(t, created, 0, "expected New to have been invoked at least once")
}
