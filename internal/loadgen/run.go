package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/joeycumines/go-ebstack"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultGoroutines is the number of workers, if Config.Goroutines is 0.
	DefaultGoroutines = 1024

	// MinValue is the smallest pushed value.
	MinValue = 100

	// MaxValue is the exclusive upper bound of pushed values.
	MaxValue = 10000
)

var (
	// ErrInvalidConfig is returned by Run, for negative Config values.
	ErrInvalidConfig = errors.New("loadgen: invalid config")

	// ErrNotConserved is returned by Result.Verify, if the values popped,
	// plus the remaining values, are not exactly the values pushed.
	ErrNotConserved = errors.New("loadgen: values not conserved")
)

const (
	opPush op = iota
	opPop
	opSize
	opCount
)

type (
	// Config models the workload. The zero value is valid.
	Config struct {
		// Goroutines is the number of workers, defaults to DefaultGoroutines.
		Goroutines int

		// Ops is the number of operations performed by each worker,
		// defaults to 1.
		Ops int

		// Parallelism limits the number of workers running at once, 0
		// meaning no limit.
		Parallelism int

		// Seed seeds each worker's generator, together with its index.
		Seed uint64

		// LocalPolicy gives each worker its own handle, for the lifetime of
		// the worker, if the stack provides one (see
		// ebstack.EliminationStack.Local). Otherwise, workers share stack.
		LocalPolicy bool
	}

	// Result summarizes the operations performed by Run.
	Result struct {
		pushed map[int]int
		popped map[int]int

		// Duration is the wall time, from the first worker start to the
		// last worker finish.
		Duration time.Duration

		Pushes    int
		Pops      int
		EmptyPops int
		Sizes     int

		// MaxSize is the largest value reported by Size.
		MaxSize int
	}

	op int

	localStack interface {
		Local() *ebstack.Local[int]
	}

	// tally is the per-worker record, merged once the worker is done.
	tally struct {
		pushed    map[int]int
		popped    map[int]int
		emptyPops int
		sizes     int
		maxSize   int
	}
)

// Run performs the workload described by cfg against stack, returning once
// all workers have finished. Cancelling ctx stops each worker before its
// next operation, in which case the Result merged from every worker (the
// operations performed before cancellation) is returned, along with
// ctx.Err(). A nil Result is only returned for an invalid cfg.
func Run(ctx context.Context, stack ebstack.Stack[int], cfg Config) (*Result, error) {
	if cfg.Goroutines < 0 || cfg.Ops < 0 || cfg.Parallelism < 0 {
		return nil, fmt.Errorf(`%w: %+v`, ErrInvalidConfig, cfg)
	}
	if cfg.Goroutines == 0 {
		cfg.Goroutines = DefaultGoroutines
	}
	if cfg.Ops == 0 {
		cfg.Ops = 1
	}

	result := Result{
		pushed: make(map[int]int),
		popped: make(map[int]int),
	}
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	if cfg.Parallelism > 0 {
		eg.SetLimit(cfg.Parallelism)
	}

	start := time.Now()
	for id := range cfg.Goroutines {
		eg.Go(func() error {
			target := stack
			if cfg.LocalPolicy {
				if s, ok := stack.(localStack); ok {
					target = s.Local()
				}
			}
			t, err := worker(ctx, target, rand.New(rand.NewPCG(cfg.Seed, uint64(id))), cfg.Ops)
			mu.Lock()
			defer mu.Unlock()
			result.merge(t)
			return err
		})
	}
	err := eg.Wait()
	result.Duration = time.Since(start)

	return &result, err
}

func worker(ctx context.Context, stack ebstack.Stack[int], r *rand.Rand, ops int) (*tally, error) {
	t := tally{
		pushed: make(map[int]int),
		popped: make(map[int]int),
	}
	for range ops {
		if err := ctx.Err(); err != nil {
			return &t, err
		}
		switch op(r.IntN(int(opCount))) {
		case opPush:
			value := MinValue + r.IntN(MaxValue-MinValue)
			stack.Push(value)
			t.pushed[value]++
		case opPop:
			if value, ok := stack.Pop(); ok {
				t.popped[value]++
			} else {
				t.emptyPops++
			}
		default:
			t.sizes++
			if n := stack.Size(); n > t.maxSize {
				t.maxSize = n
			}
		}
	}
	return &t, nil
}

func (x *Result) merge(t *tally) {
	for value, n := range t.pushed {
		x.pushed[value] += n
		x.Pushes += n
	}
	for value, n := range t.popped {
		x.popped[value] += n
		x.Pops += n
	}
	x.EmptyPops += t.emptyPops
	x.Sizes += t.sizes
	x.MaxSize = max(x.MaxSize, t.maxSize)
}

// Verify checks that the popped values, plus remaining (typically the result
// of ebstack.Drain, after Run), are exactly the pushed values, as a
// multiset. The returned error wraps ErrNotConserved.
func (x *Result) Verify(remaining []int) error {
	counts := make(map[int]int, len(x.pushed))
	for value, n := range x.pushed {
		counts[value] += n
	}
	for value, n := range x.popped {
		counts[value] -= n
	}
	for _, value := range remaining {
		counts[value]--
	}

	var lost, duplicated int
	for _, n := range counts {
		switch {
		case n > 0:
			lost += n
		case n < 0:
			duplicated -= n
		}
	}
	if lost != 0 || duplicated != 0 {
		return fmt.Errorf(`%w: %d lost, %d duplicated or unknown`, ErrNotConserved, lost, duplicated)
	}
	return nil
}
