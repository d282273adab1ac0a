package speculative

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jiaweixiao/Galois/substrate"
	"github.com/jiaweixiao/Galois/txn"
)

// Scenario 1: counting, no conflict, no push.
func TestForEachCountingNoConflictNoPush(t *testing.T) {
	pool := substrate.NewThreadPool(4)
	var sum atomic.Int64

	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}

	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		sum.Add(int64(item))
		return nil
	})

	res, err := ForEach(context.Background(), pool, items, op, WithAborts[int](false), WithPush[int](false))
	require.NoError(t, err)
	require.EqualValues(t, 499500, sum.Load())
	require.EqualValues(t, 1000, res.Iterations)
	require.Zero(t, res.Conflicts)
	require.EqualValues(t, 1000, res.Commits)
}

// Scenario 2: push, no conflict.
func TestForEachPushNoConflict(t *testing.T) {
	pool := substrate.NewThreadPool(1)

	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		if item > 0 {
			facing.Push(item - 1)
		}
		return nil
	})

	res, err := ForEach(context.Background(), pool, []int{1}, op, WithAborts[int](false))
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Iterations)
	require.EqualValues(t, 1, res.Pushes)
}

// Scenario 3: forced conflict between two items sharing one logical lock.
func TestForEachForcedConflict(t *testing.T) {
	pool := substrate.NewThreadPool(2)
	var lock txn.Lockable

	var commits atomic.Int64
	ready := make(chan struct{}, 2)
	start := make(chan struct{})
	var startOnce sync.Once

	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		select {
		case ready <- struct{}{}:
			if len(ready) == 2 {
				startOnce.Do(func() { close(start) })
			}
		default:
		}
		<-start

		if err := facing.Acquire(&lock); err != nil {
			return err
		}
		time.Sleep(2 * time.Millisecond)
		commits.Add(1)
		return nil
	})

	res, err := ForEach(context.Background(), pool, []int{0, 1}, op)
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Commits)
	require.EqualValues(t, 2, commits.Load(), "expected operator side effect to run exactly twice")
	require.GreaterOrEqual(t, res.Conflicts, uint64(1), "expected at least 1 conflict from the forced race")
	require.Nil(t, lock.Owner(), "expected lock released after both iterations committed")
}

// Scenario 4: break.
func TestForEachBreakOnSpecificItem(t *testing.T) {
	pool := substrate.NewThreadPool(1)
	items := make([]int, 1000)
	for i := range items {
		items[i] = i
	}

	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		if item == 42 {
			facing.Break()
		}
		return nil
	})

	res, err := ForEach(context.Background(), pool, items, op, WithBreak[int](true))
	require.NoError(t, err)
	require.LessOrEqual(t, res.Iterations, uint64(1000))
	require.True(t, res.Broke)
}

// Scenario 6: quiescence must wait for a chain of fastPushBack-pushed items.
func TestForEachQuiescenceWaitsForChainedPushes(t *testing.T) {
	pool := substrate.NewThreadPool(2)
	var zeroSeen atomic.Bool

	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		if item == 0 {
			zeroSeen.Store(true)
			return nil
		}
		time.Sleep(time.Microsecond)
		facing.PushBack(item - 1)
		return nil
	})

	res, err := ForEach(context.Background(), pool, []int{5}, op, WithAborts[int](false))
	require.NoError(t, err)
	require.True(t, zeroSeen.Load(), "expected the final chained item (0) to be processed before the loop quiesced")
	require.EqualValues(t, 6, res.Iterations, "expected 6 chained iterations (5..0)")
}

// Invariant: for operators without push, commits equal distinct input items.
func TestInvariantCommitsEqualDistinctItemsWithoutPush(t *testing.T) {
	pool := substrate.NewThreadPool(3)
	var mu sync.Mutex
	seen := map[int]bool{}

	items := make([]int, 200)
	for i := range items {
		items[i] = i
	}

	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		mu.Lock()
		seen[item] = true
		mu.Unlock()
		return nil
	})

	res, err := ForEach(context.Background(), pool, items, op, WithAborts[int](false), WithPush[int](false))
	require.NoError(t, err)
	require.EqualValues(t, len(seen), res.Commits)
	require.EqualValues(t, 200, res.Commits)
}

// Invariant: iterations = commits + conflicts.
func TestInvariantIterationsEqualsCommitsPlusConflicts(t *testing.T) {
	pool := substrate.NewThreadPool(2)
	var lock txn.Lockable

	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		if err := facing.Acquire(&lock); err != nil {
			return err
		}
		time.Sleep(time.Microsecond)
		return nil
	})

	res, err := ForEach(context.Background(), pool, []int{0, 1, 2, 3}, op)
	require.NoError(t, err)
	require.Equal(t, res.Commits+res.Conflicts, res.Iterations)
}

// Boundary: empty range.
func TestForEachEmptyRangeIsImmediateNoOp(t *testing.T) {
	pool := substrate.NewThreadPool(4)
	called := false
	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		called = true
		return nil
	})

	res, err := ForEach(context.Background(), pool, nil, op)
	require.NoError(t, err)
	require.False(t, called, "expected the operator never to run on an empty range")
	require.Zero(t, res.Iterations)
	require.Zero(t, res.Conflicts)
}

// Boundary: a single item on a single thread commits exactly once.
func TestForEachSingleItemSingleThread(t *testing.T) {
	pool := substrate.NewThreadPool(1)
	op := Operator[int](func(item int, facing *UserFacing[int]) error { return nil })

	res, err := ForEach(context.Background(), pool, []int{7}, op)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Commits)
	require.EqualValues(t, 1, res.Iterations)
}

// Boundary: break set on the only available item lets exactly one iteration
// complete.
func TestForEachBreakOnFirstIterationStopsAfterOne(t *testing.T) {
	pool := substrate.NewThreadPool(1)
	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		facing.Break()
		return nil
	})

	res, err := ForEach(context.Background(), pool, []int{0}, op, WithBreak[int](true))
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Iterations)
	require.True(t, res.Broke)
}

// Round-trip law: single-threaded execution matches a sequential loop in
// pop order.
func TestForEachSingleThreadedMatchesSequentialLoop(t *testing.T) {
	pool := substrate.NewThreadPool(1)
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	var got []int
	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		got = append(got, item)
		return nil
	})

	_, err := ForEach(context.Background(), pool, items, op, WithAborts[int](false))
	require.NoError(t, err)
	require.Equal(t, items, got)
}

// Round-trip law: with needsAborts=false, the multi-threaded result is the
// multiset union of what each thread processed.
func TestForEachMultiThreadedIsMultisetUnionWithoutAborts(t *testing.T) {
	pool := substrate.NewThreadPool(4)
	items := make([]int, 400)
	for i := range items {
		items[i] = i
	}

	var mu sync.Mutex
	var got []int
	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		mu.Lock()
		got = append(got, item)
		mu.Unlock()
		return nil
	})

	_, err := ForEach(context.Background(), pool, items, op, WithAborts[int](false))
	require.NoError(t, err)

	sort.Ints(got)
	require.Equal(t, items, got, "expected multiset union to equal the input set")
}

// Operator failure is propagated after every worker exits cleanly.
func TestForEachOperatorErrorIsReturnedWrapped(t *testing.T) {
	pool := substrate.NewThreadPool(2)
	boom := fmt.Errorf("boom")
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		if item == 50 {
			return boom
		}
		return nil
	})

	_, err := ForEach(context.Background(), pool, items, op, WithAborts[int](false))
	require.Error(t, err)
	var opErr *OperatorError
	require.ErrorAs(t, err, &opErr)
	require.ErrorIs(t, opErr, boom)
}

// Operator failure sets the same broke flag Break() does, so every worker
// still running observes it at its next round boundary regardless of
// whether WithBreak was ever requested for this call.
func TestForEachOperatorErrorSetsBrokeRegardlessOfWithBreak(t *testing.T) {
	pool := substrate.NewThreadPool(1)
	boom := fmt.Errorf("boom")

	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		if item == 0 {
			return boom
		}
		return nil
	})

	res, err := ForEach(context.Background(), pool, []int{0}, op, WithAborts[int](false))
	require.Error(t, err)
	var opErr *OperatorError
	require.ErrorAs(t, err, &opErr)
	require.ErrorIs(t, opErr, boom)
	require.True(t, res.Broke, "expected operator failure to set Result.Broke even without WithBreak")
}

// A panicking operator is recovered, not allowed to crash the process.
func TestForEachRecoversOperatorPanic(t *testing.T) {
	pool := substrate.NewThreadPool(2)
	items := []int{1, 2, 3}

	op := Operator[int](func(item int, facing *UserFacing[int]) error {
		if item == 2 {
			panic("operator exploded")
		}
		return nil
	})

	_, err := ForEach(context.Background(), pool, items, op, WithAborts[int](false))
	require.Error(t, err)
	var opErr *OperatorError
	require.ErrorAs(t, err, &opErr)
}
