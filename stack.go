package ebstack

// Stack is the capability shared by all strategies: a concurrent LIFO stack.
// All implementations in this package are lock-free, and safe for
// concurrent use, except where documented otherwise (see Local).
type Stack[T any] interface {
	// Push adds value to the stack. It always returns true.
	Push(value T) bool

	// Pop removes and returns a value. It returns false if the stack was
	// observed to be empty.
	Pop() (T, bool)

	// Size returns the number of values in the stack. Exact only for
	// DescriptorStack, otherwise best-effort.
	Size() int
}

// New initializes a new, empty Stack, using the strategy configured via
// WithStrategy, which defaults to StrategyElimination.
func New[T any](opts ...Option) (Stack[T], error) {
	cfg, err := resolveStackOptions(opts)
	if err != nil {
		return nil, err
	}
	var stack Stack[T]
	switch cfg.strategy {
	case StrategyDescriptor:
		stack, err = newDescriptorStack[T](cfg)
	default:
		stack, err = newEliminationStack[T](cfg)
	}
	if err != nil {
		return nil, err
	}
	return stack, nil
}

// Drain pops until the stack is observed to be empty, returning the values
// in the order they were popped. It's intended for use once all producers
// have stopped.
func Drain[T any](stack Stack[T]) (values []T) {
	for {
		value, ok := stack.Pop()
		if !ok {
			return values
		}
		values = append(values, value)
	}
}
