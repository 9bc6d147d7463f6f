package ebstack

import (
	"sync/atomic"
)

// DescriptorStack is a lock-free LIFO stack, which publishes each push and
// pop as a descriptor, bundling the resulting size with the pending write to
// the top pointer. Any goroutine that observes a pending write completes it
// before attempting its own ("helping"), so an operation never waits on
// another goroutine's incomplete operation.
//
// Size is wait-free and exact: the descriptor swap is the linearization
// point, which may precede the physical update of the top pointer.
//
// Instances must be initialized using NewDescriptorStack (or New, with
// StrategyDescriptor). All methods are safe for concurrent use.
type DescriptorStack[T any] struct {
	top  atomic.Pointer[topRef[T]]
	desc atomic.Pointer[descriptor[T]]
	ops  atomic.Uint64
	log  *stackLogger
}

var _ Stack[any] = (*DescriptorStack[any])(nil)

// NewDescriptorStack initializes a new, empty DescriptorStack. The only
// relevant options are WithLogger and WithLogRates, others are validated but
// otherwise ignored.
func NewDescriptorStack[T any](opts ...Option) (*DescriptorStack[T], error) {
	cfg, err := resolveStackOptions(opts)
	if err != nil {
		return nil, err
	}
	return newDescriptorStack[T](cfg)
}

func newDescriptorStack[T any](cfg *stackOptions) (*DescriptorStack[T], error) {
	log, err := newStackLogger(cfg)
	if err != nil {
		return nil, err
	}
	x := DescriptorStack[T]{log: log}
	x.top.Store(&topRef[T]{})
	x.desc.Store(&descriptor[T]{})
	log.initialized(StrategyDescriptor, cfg)
	return &x, nil
}

// Push adds value to the top of the stack. It always returns true.
func (x *DescriptorStack[T]) Push(value T) bool {
	c := &cell[T]{value: value}
	for {
		current := x.desc.Load()
		x.complete(current.write)

		top := x.top.Load()
		c.next = top.cell // c is unpublished until the CAS below succeeds

		next := &descriptor[T]{
			size:  current.size + 1,
			write: newWriteDescriptor(top, c),
		}
		if x.desc.CompareAndSwap(current, next) {
			x.complete(next.write)
			return true
		}
	}
}

// Pop removes and returns the value at the top of the stack, or returns
// false if the stack was observed to be empty.
func (x *DescriptorStack[T]) Pop() (value T, ok bool) {
	for {
		current := x.desc.Load()
		x.complete(current.write)

		top := x.top.Load()
		if top.cell == nil {
			return value, false
		}

		next := &descriptor[T]{
			size:  current.size - 1,
			write: newWriteDescriptor(top, top.cell.next),
		}
		if x.desc.CompareAndSwap(current, next) {
			x.complete(next.write)
			return top.cell.value, true
		}
	}
}

// Size returns the number of values in the stack, as of the most recently
// published descriptor.
func (x *DescriptorStack[T]) Size() int {
	return x.desc.Load().size
}

// Ops returns the number of completed writes to the top pointer, i.e. the
// number of successful pushes and (non-empty) pops that have been fully
// applied.
func (x *DescriptorStack[T]) Ops() uint64 {
	return x.ops.Load()
}

// complete applies w, if it's still pending. Safe to call concurrently, for
// the same w, from any number of goroutines.
func (x *DescriptorStack[T]) complete(w *writeDescriptor[T]) {
	if w == nil || !w.pending.Load() {
		return
	}
	// fails if another goroutine already applied it
	x.top.CompareAndSwap(w.oldTop, w.newTop)
	// the top must be updated before pending is cleared
	if w.pending.CompareAndSwap(true, false) {
		x.ops.Add(1)
	}
}
