package speculative

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiaweixiao/Galois/substrate"
)

func TestAbortHandlerPushFreshStartsAtRetryOne(t *testing.T) {
	pool := substrate.NewThreadPool(4)
	h := newAbortHandler[int](pool, PolicyEager)

	h.pushFresh(0, 42)
	item, ok := h.popLocal(0)
	require.True(t, ok, "expected an item on thread 0's queue")
	require.Equal(t, abortedItem[int]{val: 42, retries: 1}, item)
}

func TestAbortHandlerEagerPolicyStaysLocal(t *testing.T) {
	pool := substrate.NewThreadPool(4)
	h := newAbortHandler[int](pool, PolicyEager)

	h.pushFresh(1, 7)
	item, _ := h.popLocal(1)
	h.push(1, item)

	_, ok := h.popLocal(0)
	require.False(t, ok, "expected thread 0's queue to remain empty under the eager policy")
	got, ok := h.popLocal(1)
	require.True(t, ok, "expected the eager policy to re-queue locally")
	require.Equal(t, 2, got.retries)
}

// Scenario 5: with 8 threads and 4 packages, an item that keeps conflicting
// escalates through at least two distinct escalation targets before it
// would be expected to commit, and its retry count only ever increases.
// The item starts on thread 7: thread 0 leads package 0, the root every
// escalation climbs toward, so an item already there has nowhere to go.
func TestAbortHandlerEscalationReachesMultipleLevels(t *testing.T) {
	pool := substrate.NewThreadPool(8, substrate.WithPackages(4))
	h := newAbortHandler[int](pool, PolicyDouble)

	h.pushFresh(7, 99)
	item, ok := h.popLocal(7)
	require.True(t, ok, "expected the freshly pushed item on thread 7")

	tid := 7
	visited := map[int]bool{7: true}
	prevRetries := item.retries

	for level := 0; level < 4; level++ {
		h.push(tid, item)

		found := false
		for t2 := 0; t2 < pool.ActiveThreads(); t2++ {
			if it, ok := h.popLocal(t2); ok {
				item, tid = it, t2
				found = true
				break
			}
		}
		require.Truef(t, found, "escalated item vanished after level %d", level)
		require.GreaterOrEqualf(t, item.retries, prevRetries, "retries must be non-decreasing")
		prevRetries = item.retries
		visited[tid] = true
	}

	require.GreaterOrEqualf(t, len(visited), 2, "expected escalation to reach at least 2 distinct threads")
	require.GreaterOrEqual(t, item.retries, 4)
}

func TestAbortHandlerAutoPolicyPicksBasicForFewPackages(t *testing.T) {
	pool := substrate.NewThreadPool(2, substrate.WithPackages(1))
	h := newAbortHandler[int](pool, PolicyAuto)
	require.Equal(t, PolicyBasic, h.policy)
}

func TestAbortHandlerAutoPolicyPicksDoubleForManyPackages(t *testing.T) {
	pool := substrate.NewThreadPool(8, substrate.WithPackages(4))
	h := newAbortHandler[int](pool, PolicyAuto)
	require.Equal(t, PolicyDouble, h.policy)
}
