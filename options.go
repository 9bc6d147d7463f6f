package ebstack

import (
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

const (
	// DefaultCapacity is the number of exchangers in the elimination array,
	// unless configured otherwise, via WithCapacity.
	DefaultCapacity = 32

	// DefaultTimeout bounds each elimination attempt, unless configured
	// otherwise, via WithTimeout.
	DefaultTimeout = time.Millisecond
)

// Strategy selects the push/pop protocol used by New.
type Strategy int

const (
	// StrategyElimination selects EliminationStack, which attempts a single
	// CAS against the top, backing off to the elimination array under
	// contention. Its Size is an estimate.
	StrategyElimination Strategy = iota

	// StrategyDescriptor selects DescriptorStack, which publishes every
	// mutation via a descriptor, and is the only strategy with an exact
	// (wait-free) Size.
	StrategyDescriptor
)

// String implements fmt.Stringer.
func (x Strategy) String() string {
	switch x {
	case StrategyElimination:
		return `elimination`
	case StrategyDescriptor:
		return `descriptor`
	default:
		return fmt.Sprintf(`Strategy(%d)`, int(x))
	}
}

// ParseStrategy is the inverse of Strategy.String.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case `elimination`:
		return StrategyElimination, nil
	case `descriptor`:
		return StrategyDescriptor, nil
	default:
		return 0, fmt.Errorf(`%w: %q`, ErrInvalidStrategy, s)
	}
}

// stackOptions holds configuration options for stack creation.
type stackOptions struct {
	logger   *logiface.Logger[logiface.Event]
	logRates map[time.Duration]int
	strategy Strategy
	capacity int
	timeout  time.Duration
}

// Option configures a stack, see New, NewDescriptorStack, and
// NewEliminationStack.
type Option interface {
	applyStack(*stackOptions) error
}

// stackOptionImpl implements Option.
type stackOptionImpl struct {
	applyStackFunc func(*stackOptions) error
}

func (x *stackOptionImpl) applyStack(opts *stackOptions) error {
	return x.applyStackFunc(opts)
}

// WithStrategy selects the protocol used by New. Ignored by the
// strategy-specific constructors.
func WithStrategy(strategy Strategy) Option {
	return &stackOptionImpl{func(opts *stackOptions) error {
		switch strategy {
		case StrategyElimination, StrategyDescriptor:
		default:
			return fmt.Errorf(`%w: %s`, ErrInvalidStrategy, strategy)
		}
		opts.strategy = strategy
		return nil
	}}
}

// WithCapacity sets the number of exchangers in the elimination array, which
// is also the upper bound of each goroutine's adaptive range.
func WithCapacity(capacity int) Option {
	return &stackOptionImpl{func(opts *stackOptions) error {
		if capacity <= 0 {
			return fmt.Errorf(`%w: %d`, ErrInvalidCapacity, capacity)
		}
		opts.capacity = capacity
		return nil
	}}
}

// WithTimeout sets how long a single elimination attempt waits for a
// partner, before the operation retries the direct path.
func WithTimeout(timeout time.Duration) Option {
	return &stackOptionImpl{func(opts *stackOptions) error {
		if timeout <= 0 {
			return fmt.Errorf(`%w: %s`, ErrInvalidTimeout, timeout)
		}
		opts.timeout = timeout
		return nil
	}}
}

// WithLogger attaches a logger. A nil logger disables logging, which is the
// default.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &stackOptionImpl{func(opts *stackOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithLogRates overrides the per-category rate limits applied to log events
// emitted from the elimination path. See catrate.NewLimiter for the format.
// A nil or empty map disables rate limiting.
func WithLogRates(rates map[time.Duration]int) Option {
	return &stackOptionImpl{func(opts *stackOptions) error {
		opts.logRates = rates
		return nil
	}}
}

// resolveStackOptions applies Option instances to stackOptions.
func resolveStackOptions(opts []Option) (*stackOptions, error) {
	cfg := &stackOptions{
		strategy: StrategyElimination,
		capacity: DefaultCapacity,
		timeout:  DefaultTimeout,
		logRates: map[time.Duration]int{
			time.Second: 10,
			time.Minute: 100,
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyStack(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
