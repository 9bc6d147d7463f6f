package ebstack

import (
	"sync"
	"sync/atomic"
)

type (
	// EliminationStack is a lock-free LIFO stack using elimination-backoff.
	// Each push or pop first attempts a single CAS against the top pointer.
	// If that fails due to contention, it visits the elimination array,
	// where a concurrent push and pop may cancel out, by exchanging the
	// value directly, without touching the top pointer. A timed-out
	// elimination attempt falls back to retrying the CAS.
	//
	// Each goroutine's adaptive range is held by a RangePolicy. Push and Pop
	// borrow one from an internal pool, for the duration of the call. Use
	// Local to obtain a handle that owns its policy for its whole lifetime.
	//
	// WARNING: Size is an estimate, maintained separately from the top
	// pointer, and is not linearizable with Push and Pop. Use
	// DescriptorStack if an exact size is required.
	//
	// Instances must be initialized using NewEliminationStack (or New).
	// All methods are safe for concurrent use.
	EliminationStack[T any] struct {
		top         atomic.Pointer[cell[T]]
		size        atomic.Int64
		elimination *EliminationArray[offer[T]]
		policies    sync.Pool
		log         *stackLogger
		stats       struct {
			pushes     atomic.Uint64
			pops       atomic.Uint64
			timeouts   atomic.Uint64
			mismatches atomic.Uint64
		}
	}

	// EliminationStats are counters of elimination attempts, see
	// EliminationStack.Stats. Operations that succeed via the direct path
	// aren't counted.
	EliminationStats struct {
		// EliminatedPushes is the number of pushes consumed by a pop.
		EliminatedPushes uint64
		// EliminatedPops is the number of pops satisfied by a push.
		EliminatedPops uint64
		// Timeouts is the number of visits that found no partner.
		Timeouts uint64
		// Mismatches is the number of visits that met the same kind of
		// operation (push-push or pop-pop).
		Mismatches uint64
	}

	// Local is a handle to an EliminationStack, which owns a RangePolicy,
	// and so must not be used concurrently. Obtain one per goroutine, via
	// EliminationStack.Local.
	Local[T any] struct {
		stack  *EliminationStack[T]
		policy *RangePolicy
	}
)

var (
	_ Stack[any] = (*EliminationStack[any])(nil)
	_ Stack[any] = (*Local[any])(nil)
)

// NewEliminationStack initializes a new, empty EliminationStack. See
// WithCapacity and WithTimeout, which configure the elimination array.
func NewEliminationStack[T any](opts ...Option) (*EliminationStack[T], error) {
	cfg, err := resolveStackOptions(opts)
	if err != nil {
		return nil, err
	}
	return newEliminationStack[T](cfg)
}

func newEliminationStack[T any](cfg *stackOptions) (*EliminationStack[T], error) {
	log, err := newStackLogger(cfg)
	if err != nil {
		return nil, err
	}
	x := EliminationStack[T]{
		elimination: NewEliminationArray[offer[T]](cfg.capacity, cfg.timeout),
		log:         log,
	}
	x.elimination.log = log
	capacity := cfg.capacity
	x.policies.New = func() any { return NewRangePolicy(capacity) }
	log.initialized(StrategyElimination, cfg)
	return &x, nil
}

// Push adds value to the top of the stack, or hands it directly to a
// concurrent Pop. It always returns true.
func (x *EliminationStack[T]) Push(value T) bool {
	policy := x.policies.Get().(*RangePolicy)
	defer x.policies.Put(policy)
	return x.push(policy, value)
}

// Pop removes and returns the value at the top of the stack, or a value
// from a concurrent Push. Returns false if the stack was observed to be
// empty, in which case no elimination is attempted.
func (x *EliminationStack[T]) Pop() (T, bool) {
	policy := x.policies.Get().(*RangePolicy)
	defer x.policies.Put(policy)
	return x.pop(policy)
}

// Size returns an estimate of the number of values in the stack, see the
// warning on EliminationStack.
func (x *EliminationStack[T]) Size() int {
	if n := x.size.Load(); n > 0 {
		return int(n)
	}
	return 0
}

// Capacity returns the number of exchangers in the elimination array.
func (x *EliminationStack[T]) Capacity() int {
	return x.elimination.Capacity()
}

// Stats returns a snapshot of the elimination counters. The fields are
// loaded independently.
func (x *EliminationStack[T]) Stats() EliminationStats {
	return EliminationStats{
		EliminatedPushes: x.stats.pushes.Load(),
		EliminatedPops:   x.stats.pops.Load(),
		Timeouts:         x.stats.timeouts.Load(),
		Mismatches:       x.stats.mismatches.Load(),
	}
}

// Local returns a new handle, with its own RangePolicy, starting at range 1.
func (x *EliminationStack[T]) Local() *Local[T] {
	return &Local[T]{
		stack:  x,
		policy: NewRangePolicy(x.elimination.Capacity()),
	}
}

func (x *EliminationStack[T]) push(policy *RangePolicy, value T) bool {
	c := &cell[T]{value: value}
	for {
		if x.tryPush(c) {
			x.size.Add(1)
			return true
		}
		if x.eliminatePush(policy, value) {
			return true
		}
	}
}

func (x *EliminationStack[T]) pop(policy *RangePolicy) (value T, ok bool) {
	for {
		top := x.top.Load()
		if top == nil {
			return value, false
		}
		// cells are never reused, and next is fixed once published
		if x.directAllowed(opPop) && x.top.CompareAndSwap(top, top.next) {
			x.size.Add(-1)
			return top.value, true
		}
		if value, ok = x.eliminatePop(policy); ok {
			return value, true
		}
	}
}

// tryPush attempts to link c as the new top, which is only safe while c is
// unpublished
func (x *EliminationStack[T]) tryPush(c *cell[T]) bool {
	top := x.top.Load()
	c.next = top
	return x.directAllowed(opPush) && x.top.CompareAndSwap(top, c)
}

func (x *EliminationStack[T]) directAllowed(kind opKind) bool {
	hooks := x.elimination.hooks
	return hooks == nil || hooks.PreDirectCAS == nil || hooks.PreDirectCAS(kind)
}

func (x *EliminationStack[T]) eliminatePush(policy *RangePolicy, value T) bool {
	partner, ok := x.elimination.Visit(offer[T]{value: value, kind: opPush}, policy.Range())
	if !x.record(policy, opPop, partner.kind, ok) {
		return false
	}
	x.stats.pushes.Add(1)
	return true
}

func (x *EliminationStack[T]) eliminatePop(policy *RangePolicy) (value T, ok bool) {
	partner, ok := x.elimination.Visit(offer[T]{kind: opPop}, policy.Range())
	if !x.record(policy, opPush, partner.kind, ok) {
		return value, false
	}
	x.stats.pops.Add(1)
	return partner.value, true
}

// record updates the policy following a visit, returning true if the
// partner was the wanted (complementary) kind
func (x *EliminationStack[T]) record(policy *RangePolicy, want, got opKind, ok bool) bool {
	before := policy.Range()

	switch {
	case !ok:
		x.stats.timeouts.Add(1)
		policy.RecordEliminationTimeout()
		if before > 1 && policy.Range() == 1 {
			x.log.rangeCollapsed(before)
		}
		return false

	case got != want:
		// contention exists, but neither side made progress
		x.stats.mismatches.Add(1)
		x.log.kindMismatch(got)
		return false

	default:
		policy.RecordEliminationSuccess()
		if before < policy.Max() && policy.Range() == policy.Max() {
			x.log.rangeSaturated(policy.Max())
		}
		return true
	}
}

// Push is EliminationStack.Push, using this handle's RangePolicy.
func (x *Local[T]) Push(value T) bool {
	return x.stack.push(x.policy, value)
}

// Pop is EliminationStack.Pop, using this handle's RangePolicy.
func (x *Local[T]) Pop() (T, bool) {
	return x.stack.pop(x.policy)
}

// Size is EliminationStack.Size.
func (x *Local[T]) Size() int {
	return x.stack.Size()
}

// Range returns the current range of this handle's RangePolicy.
func (x *Local[T]) Range() int {
	return x.policy.Range()
}
