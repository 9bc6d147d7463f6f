// Package ebstack implements lock-free, concurrent LIFO stacks, including an
// elimination-backoff stack, where concurrent push and pop operations may
// cancel out, exchanging values directly rather than contending on the top
// of the stack.
//
// # Strategies
//
// Two independent implementations satisfy [Stack]:
//
//   - [EliminationStack] attempts a single CAS against the top pointer, and
//     on contention visits an [EliminationArray] of [Exchanger] slots, for a
//     bounded time, before retrying. Each goroutine adapts the portion of
//     the array it samples, via a [RangePolicy].
//   - [DescriptorStack] publishes each operation as a descriptor, which
//     bundles the size with the pending write to the top pointer, and which
//     any goroutine may complete ("helping"). Its Size is exact and
//     wait-free.
//
// Only [DescriptorStack] provides an exact Size. The size reported by
// [EliminationStack] is an estimate.
//
// # Outcomes
//
// Pop reports an empty stack via its boolean result. Elimination timeouts
// and CAS failures are internal, and are always retried. Errors are only
// returned by the constructors, for invalid options.
//
// # Usage
//
//	stack, err := ebstack.New[int](
//	    ebstack.WithCapacity(16),
//	    ebstack.WithTimeout(time.Millisecond),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stack.Push(5)
//	if v, ok := stack.Pop(); ok {
//	    fmt.Println(v)
//	}
package ebstack
