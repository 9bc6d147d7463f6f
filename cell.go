package ebstack

import (
	"sync/atomic"
)

type (
	// cell is a list node. It is immutable once reachable from a top pointer,
	// until then only the goroutine that allocated it may set next.
	cell[T any] struct {
		next  *cell[T]
		value T
	}

	// topRef is a single published value of DescriptorStack.top. A new one
	// is allocated per write descriptor, so comparing references can't be
	// fooled by the same cell becoming the top again (ABA).
	topRef[T any] struct {
		cell *cell[T]
	}

	// writeDescriptor models one structural mutation of the top pointer,
	// which any goroutine may complete.
	writeDescriptor[T any] struct {
		oldTop  *topRef[T]
		newTop  *topRef[T]
		pending atomic.Bool
	}

	// descriptor bundles the logical size with the write that produced it.
	// It's swapped as a unit, and never mutated once published.
	descriptor[T any] struct {
		write *writeDescriptor[T] // nil for the initial descriptor
		size  int
	}
)

func newWriteDescriptor[T any](oldTop *topRef[T], newCell *cell[T]) *writeDescriptor[T] {
	w := writeDescriptor[T]{
		oldTop: oldTop,
		newTop: &topRef[T]{cell: newCell},
	}
	w.pending.Store(true)
	return &w
}

