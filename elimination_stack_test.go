package ebstack

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEliminationStack[T any](t *testing.T, opts ...Option) *EliminationStack[T] {
	t.Helper()
	stack, err := NewEliminationStack[T](opts...)
	require.NoError(t, err)
	return stack
}

func TestEliminationStack_sequential(t *testing.T) {
	stack := newTestEliminationStack[int](t)
	assert.Equal(t, DefaultCapacity, stack.Capacity())

	assert.True(t, stack.Push(5))
	assert.True(t, stack.Push(7))
	assert.Equal(t, 2, stack.Size())

	v, ok := stack.Pop()
	require.True(t, ok)
	assert.Equal(t, 7, v)

	v, ok = stack.Pop()
	require.True(t, ok)
	assert.Equal(t, 5, v)

	v, ok = stack.Pop()
	assert.False(t, ok)
	assert.Zero(t, v)

	assert.Equal(t, 0, stack.Size())
	assert.Equal(t, EliminationStats{}, stack.Stats(), `uncontended operations never visit the array`)
}

func TestEliminationStack_zeroValueElements(t *testing.T) {
	stack := newTestEliminationStack[string](t)
	stack.Push(``)
	v, ok := stack.Pop()
	require.True(t, ok)
	assert.Equal(t, ``, v)
	_, ok = stack.Pop()
	assert.False(t, ok)
}

func TestEliminationStack_Size_clamped(t *testing.T) {
	stack := newTestEliminationStack[int](t)
	// the counter may transiently go negative, when a pop's decrement lands
	// before the matching push's increment
	stack.size.Store(-3)
	assert.Equal(t, 0, stack.Size())
	stack.size.Store(4)
	assert.Equal(t, 4, stack.Size())
}

// a push and pop meeting in the array cancel out, without touching the top
func TestEliminationStack_forcedElimination(t *testing.T) {
	stack := newTestEliminationStack[int](t, WithCapacity(1), WithTimeout(time.Second*5))

	var (
		wg     sync.WaitGroup
		pushed bool
		popped int
		ok     bool
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		pushed = stack.eliminatePush(NewRangePolicy(1), 3)
	}()
	go func() {
		defer wg.Done()
		popped, ok = stack.eliminatePop(NewRangePolicy(1))
	}()
	wg.Wait()

	assert.True(t, pushed)
	require.True(t, ok)
	assert.Equal(t, 3, popped)
	assert.Nil(t, stack.top.Load())
	assert.Equal(t, 0, stack.Size())
	assert.Equal(t, EliminationStats{EliminatedPushes: 1, EliminatedPops: 1}, stack.Stats())
}

// a push that loses the direct CAS hands its value to a waiting pop,
// without ever linking a cell
func TestEliminationStack_Push_eliminated(t *testing.T) {
	stack := newTestEliminationStack[int](t, WithCapacity(1), WithTimeout(time.Second*5))

	var attempts atomic.Int64
	stack.elimination.hooks = &eliminationTestHooks{PreDirectCAS: func(kind opKind) bool {
		assert.Equal(t, opPush, kind)
		attempts.Add(1)
		return false
	}}

	done := make(chan struct{})
	var (
		popped int
		ok     bool
	)
	go func() {
		defer close(done)
		popped, ok = stack.eliminatePop(NewRangePolicy(1))
	}()

	assert.True(t, stack.Push(3))
	<-done

	require.True(t, ok)
	assert.Equal(t, 3, popped)
	assert.Equal(t, int64(1), attempts.Load())
	assert.Nil(t, stack.top.Load())
	assert.Equal(t, 0, stack.Size())
	assert.Equal(t, EliminationStats{EliminatedPushes: 1, EliminatedPops: 1}, stack.Stats())
}

// a pop that loses the direct CAS takes the value of a concurrent push,
// leaving the existing top in place
func TestEliminationStack_Pop_eliminated(t *testing.T) {
	stack := newTestEliminationStack[int](t, WithCapacity(1), WithTimeout(time.Second*5))
	stack.Push(1)
	top := stack.top.Load()

	stack.elimination.hooks = &eliminationTestHooks{PreDirectCAS: func(kind opKind) bool {
		return kind != opPop
	}}

	done := make(chan struct{})
	var pushed bool
	go func() {
		defer close(done)
		pushed = stack.eliminatePush(NewRangePolicy(1), 9)
	}()

	v, ok := stack.Pop()
	<-done

	require.True(t, ok)
	assert.Equal(t, 9, v)
	assert.True(t, pushed)
	assert.Same(t, top, stack.top.Load())
	assert.Equal(t, 1, stack.Size())
	assert.Equal(t, EliminationStats{EliminatedPushes: 1, EliminatedPops: 1}, stack.Stats())
}

// an elimination timeout sends the operation back to the direct CAS
func TestEliminationStack_timeoutRetriesDirect(t *testing.T) {
	for _, tc := range [...]struct {
		name    string
		kind    opKind
		prepare func(stack *EliminationStack[int])
		run     func(t *testing.T, stack *EliminationStack[int])
		size    int
	}{
		{
			name: `push`,
			kind: opPush,
			run: func(t *testing.T, stack *EliminationStack[int]) {
				assert.True(t, stack.Push(7))
				require.NotNil(t, stack.top.Load())
				assert.Equal(t, 7, stack.top.Load().value)
			},
			size: 1,
		},
		{
			name: `pop`,
			kind: opPop,
			prepare: func(stack *EliminationStack[int]) {
				stack.Push(7)
			},
			run: func(t *testing.T, stack *EliminationStack[int]) {
				v, ok := stack.Pop()
				require.True(t, ok)
				assert.Equal(t, 7, v)
				assert.Nil(t, stack.top.Load())
			},
			size: 0,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			stack := newTestEliminationStack[int](t, WithCapacity(4), WithTimeout(time.Millisecond))
			if tc.prepare != nil {
				tc.prepare(stack)
			}

			var attempts int
			stack.elimination.hooks = &eliminationTestHooks{PreDirectCAS: func(kind opKind) bool {
				assert.Equal(t, tc.kind, kind)
				attempts++
				return attempts > 1
			}}

			tc.run(t, stack)
			assert.Equal(t, 2, attempts)
			assert.Equal(t, tc.size, stack.Size())
			assert.Equal(t, EliminationStats{Timeouts: 1}, stack.Stats())
		})
	}
}

// pushes that meet each other in the array both return to the direct CAS
func TestEliminationStack_mismatchRetriesDirect(t *testing.T) {
	stack := newTestEliminationStack[int](t, WithCapacity(1), WithTimeout(time.Second*5))

	var attempts atomic.Int64
	stack.elimination.hooks = &eliminationTestHooks{PreDirectCAS: func(opKind) bool {
		return attempts.Add(1) > 2
	}}

	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, stack.Push(i))
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, stack.Size())
	assert.ElementsMatch(t, []int{0, 1}, Drain[int](stack))
	stats := stack.Stats()
	assert.Equal(t, uint64(2), stats.Mismatches)
	assert.Zero(t, stats.EliminatedPushes)
	assert.Zero(t, stats.EliminatedPops)
}

// two pushes meeting in the array must both retry, and leave their ranges
// unchanged
func TestEliminationStack_kindMismatch(t *testing.T) {
	stack := newTestEliminationStack[int](t, WithCapacity(2), WithTimeout(time.Second*5))

	policies := [...]*RangePolicy{NewRangePolicy(2), NewRangePolicy(2)}
	var (
		wg      sync.WaitGroup
		results [2]bool
	)
	for i := range policies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// range 1 always selects the first exchanger
			results[i] = stack.eliminatePush(policies[i], i)
		}()
	}
	wg.Wait()

	assert.Equal(t, [2]bool{false, false}, results)
	for _, policy := range policies {
		assert.Equal(t, 1, policy.Range())
	}
	assert.Equal(t, EliminationStats{Mismatches: 2}, stack.Stats())
	assert.Nil(t, stack.top.Load())
}

func TestEliminationStack_record(t *testing.T) {
	stack := newTestEliminationStack[int](t, WithCapacity(3))
	policy := NewRangePolicy(stack.Capacity())

	assert.True(t, stack.record(policy, opPush, opPush, true))
	assert.Equal(t, 2, policy.Range())
	assert.True(t, stack.record(policy, opPop, opPop, true))
	assert.Equal(t, 3, policy.Range())
	assert.True(t, stack.record(policy, opPop, opPop, true))
	assert.Equal(t, 3, policy.Range())

	assert.False(t, stack.record(policy, opPop, opPush, true))
	assert.Equal(t, 3, policy.Range())

	assert.False(t, stack.record(policy, opPop, 0, false))
	assert.Equal(t, 2, policy.Range())

	// counters for successful eliminations are maintained by the callers
	assert.Equal(t, EliminationStats{Timeouts: 1, Mismatches: 1}, stack.Stats())
}

func TestEliminationStack_Local(t *testing.T) {
	stack := newTestEliminationStack[int](t, WithCapacity(8))

	local := stack.Local()
	assert.Equal(t, 1, local.Range())

	local.Push(1)
	stack.Push(2)
	assert.Equal(t, 2, local.Size())

	v, ok := local.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, v)
	v, ok = stack.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = local.Pop()
	assert.False(t, ok)
	assert.Equal(t, 1, local.Range())

	assert.NotSame(t, local.policy, stack.Local().policy)
}

// each goroutine owning a Local handle, producers and consumers together
// must conserve every value
func TestEliminationStack_Local_concurrent(t *testing.T) {
	const (
		producers = 16
		perWorker = 1000
	)

	stack := newTestEliminationStack[int](t, WithCapacity(4), WithTimeout(time.Microsecond*100))

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		popped = make(map[int]int)
	)
	for w := range producers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			local := stack.Local()
			for i := range perWorker {
				local.Push(w*perWorker + i)
				if r := local.Range(); r < 1 || r > 4 {
					t.Errorf(`range out of bounds: %d`, r)
				}
			}
		}()
		go func() {
			defer wg.Done()
			local := stack.Local()
			values := make([]int, 0, perWorker)
			for range perWorker {
				if v, ok := local.Pop(); ok {
					values = append(values, v)
				}
			}
			mu.Lock()
			for _, v := range values {
				popped[v]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, v := range Drain[int](stack) {
		popped[v]++
	}
	require.Len(t, popped, producers*perWorker)
	for v, n := range popped {
		if n != 1 {
			t.Fatalf(`value %d popped %d times`, v, n)
		}
	}
	stats := stack.Stats()
	assert.Equal(t, stats.EliminatedPushes, stats.EliminatedPops)
	assert.Equal(t, 0, stack.Size())
}
