// Package loadgen drives concurrent, randomized workloads against the stack
// implementations, and verifies that no value is lost or duplicated.
//
// Each worker performs a uniformly random choice of push (of a random value
// in [MinValue, MaxValue)), pop, or size, per operation.
package loadgen

import (
	"github.com/joeycumines/go-ebstack"
)

// StackFactory creates a new, empty stack.
type StackFactory func(opts ...ebstack.Option) (ebstack.Stack[int], error)

// Implementation represents a named stack implementation.
type Implementation struct { // betteralign:ignore
	Name     string
	Strategy ebstack.Strategy
	Factory  StackFactory
}

// Implementations returns every strategy, each using ebstack.New.
func Implementations() []Implementation {
	strategies := [...]ebstack.Strategy{
		ebstack.StrategyElimination,
		ebstack.StrategyDescriptor,
	}
	impls := make([]Implementation, 0, len(strategies))
	for _, strategy := range strategies {
		impls = append(impls, Implementation{
			Name:     strategy.String(),
			Strategy: strategy,
			Factory: func(opts ...ebstack.Option) (ebstack.Stack[int], error) {
				return ebstack.New[int](append([]ebstack.Option{ebstack.WithStrategy(strategy)}, opts...)...)
			},
		})
	}
	return impls
}
