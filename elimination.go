package ebstack

import (
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	opPush opKind = iota + 1
	opPop
)

type (
	// opKind tags the payload exchanged via the elimination array, so that
	// a push that meets another push (or pop meets pop) is distinguishable
	// from a complementary pair. A sentinel value can't be used, as the zero
	// value of T is a valid element.
	opKind uint8

	// offer is the payload exchanged by EliminationStack.
	offer[T any] struct {
		value T
		kind  opKind
	}

	// EliminationArray is a fixed pool of exchangers. Each visit selects one
	// uniformly at random, within a caller-provided range, and attempts a
	// time-bounded exchange against it.
	//
	// Instances must be initialized using NewEliminationArray.
	EliminationArray[T any] struct {
		exchangers []paddedExchanger[T]
		timeout    time.Duration
		log        *stackLogger
		hooks      *eliminationTestHooks
	}

	// eliminationTestHooks force specific interleavings, in tests.
	eliminationTestHooks struct {
		PreDirectCAS func(kind opKind) bool // return false to fail the attempt
		PreWithdraw  func()                 // deadline passed, before the waiter withdraws
	}

	// paddedExchanger avoids false sharing between adjacent slots.
	paddedExchanger[T any] struct { // betteralign:ignore
		Exchanger[T]
		_ [sizeOfCacheLine - sizeOfAtomicPointer]byte
	}
)

// String implements fmt.Stringer.
func (x opKind) String() string {
	switch x {
	case opPush:
		return `push`
	case opPop:
		return `pop`
	default:
		return fmt.Sprintf(`opKind(%d)`, uint8(x))
	}
}

// NewEliminationArray initializes an EliminationArray with capacity
// exchangers, where each visit waits at most timeout. A panic will occur if
// capacity or timeout are not positive.
func NewEliminationArray[T any](capacity int, timeout time.Duration) *EliminationArray[T] {
	if capacity <= 0 {
		panic(`ebstack: elimination array: capacity must be positive`)
	}
	if timeout <= 0 {
		panic(`ebstack: elimination array: timeout must be positive`)
	}
	return &EliminationArray[T]{
		exchangers: make([]paddedExchanger[T], capacity),
		timeout:    timeout,
	}
}

// Capacity returns the number of exchangers.
func (x *EliminationArray[T]) Capacity() int {
	return len(x.exchangers)
}

// Timeout returns the maximum duration of a single visit.
func (x *EliminationArray[T]) Timeout() time.Duration {
	return x.timeout
}

// Visit exchanges value with a concurrent visitor, using an exchanger chosen
// from the indices [0, rng). The range is clamped to [1, Capacity()].
// Returns false on timeout.
func (x *EliminationArray[T]) Visit(value T, rng int) (T, bool) {
	index := rand.IntN(x.clamp(rng))
	partner, result := x.exchangers[index].exchange(value, time.Now().Add(x.timeout), x.hooks)
	if result == exchangeLate {
		x.log.lateWithdrawal(index)
	}
	return partner, result != exchangeTimeout
}

func (x *EliminationArray[T]) clamp(rng int) int {
	if rng < 1 {
		return 1
	}
	if rng > len(x.exchangers) {
		return len(x.exchangers)
	}
	return rng
}
