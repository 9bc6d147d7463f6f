package ebstack

import (
	"runtime"
	"sync/atomic"
	"time"
)

const (
	slotWaiting slotState = iota + 1
	slotBusy
)

const (
	exchangeTimeout exchangeResult = iota
	exchangeMatched
	// exchangeLate indicates the waiter's deadline passed, but a partner
	// claimed the slot before it could withdraw
	exchangeLate
)

type (
	slotState uint8

	exchangeResult uint8

	// slot is a published (non-empty) state of an Exchanger. Each state is a
	// new value, never mutated, so a CAS against a previously loaded state
	// fails if any transition has occurred in the meantime.
	slot[T any] struct {
		item  T
		state slotState
	}

	// Exchanger is a rendezvous point, allowing exactly two goroutines to
	// swap values, within a deadline. The slot cycles through the states
	// EMPTY, WAITING(item), then BUSY(item), each transition performed by a
	// single winning CAS, and back to EMPTY, reset by the waiting goroutine.
	//
	// The zero value is ready to use. Exchanger must not be copied after
	// first use.
	Exchanger[T any] struct {
		slot atomic.Pointer[slot[T]] // nil is EMPTY
	}
)

// Exchange offers item to a concurrent caller of Exchange, returning their
// item, and true, on success. If no partner arrives before the deadline,
// the zero value and false are returned, in which case item was not
// delivered to anyone.
func (x *Exchanger[T]) Exchange(item T, deadline time.Time) (T, bool) {
	partner, result := x.exchange(item, deadline, nil)
	return partner, result != exchangeTimeout
}

func (x *Exchanger[T]) exchange(item T, deadline time.Time, hooks *eliminationTestHooks) (partner T, result exchangeResult) {
	for time.Now().Before(deadline) {
		current := x.slot.Load()

		switch {
		case current == nil:
			mine := &slot[T]{item: item, state: slotWaiting}
			if !x.slot.CompareAndSwap(nil, mine) {
				break
			}

			// wait for a partner to transition us to BUSY
			for time.Now().Before(deadline) {
				if current = x.slot.Load(); current.state == slotBusy {
					x.slot.Store(nil)
					return current.item, exchangeMatched
				}
				runtime.Gosched()
			}

			if hooks != nil && hooks.PreWithdraw != nil {
				hooks.PreWithdraw()
			}

			// withdraw, unless a partner has claimed the slot
			if x.slot.CompareAndSwap(mine, nil) {
				return partner, exchangeTimeout
			}
			current = x.slot.Load()
			x.slot.Store(nil)
			return current.item, exchangeLate

		case current.state == slotWaiting:
			if x.slot.CompareAndSwap(current, &slot[T]{item: item, state: slotBusy}) {
				return current.item, exchangeMatched
			}

		default:
			// BUSY: another pair is mid-handoff
		}

		runtime.Gosched()
	}

	return partner, exchangeTimeout
}
