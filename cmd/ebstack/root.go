package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/joeycumines/go-ebstack"
	"github.com/joeycumines/go-ebstack/internal/loadgen"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
)

var errUnknownLevel = errors.New("ebstack: unknown log level")

// rootFlags holds the flag values of the root command.
type rootFlags struct {
	strategy    string
	logLevel    string
	goroutines  int
	ops         int
	capacity    int
	timeout     time.Duration
	seed        uint64
	verify      bool
	localPolicy bool
}

func newRootCommand() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:   "ebstack",
		Short: "Concurrent workload driver for lock-free stacks",
		Long: `ebstack starts a number of goroutines, each performing a uniformly random
choice of push (of a random value in [100, 10000)), pop, or size, against a
single shared stack, then reports the runtime.

With --verify, the stack is drained afterwards, and the run fails unless every
pushed value was popped exactly once. An interrupted run (SIGINT) still reports,
and verifies, the operations performed before the interrupt.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, &flags)
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.goroutines, "goroutines", loadgen.DefaultGoroutines, "number of worker goroutines")
	f.IntVar(&flags.ops, "ops", 1, "operations performed by each goroutine")
	f.StringVar(&flags.strategy, "strategy", ebstack.StrategyElimination.String(), "stack strategy: elimination or descriptor")
	f.IntVar(&flags.capacity, "capacity", ebstack.DefaultCapacity, "number of exchangers in the elimination array")
	f.DurationVar(&flags.timeout, "timeout", ebstack.DefaultTimeout, "maximum wait for an elimination partner")
	f.StringVar(&flags.logLevel, "log-level", logiface.LevelInformational.String(), "log level (disabled, emerg, alert, crit, err, warning, notice, info, debug, trace)")
	f.Uint64Var(&flags.seed, "seed", 0, "seed for the workload generators, 0 for a random seed")
	f.BoolVar(&flags.verify, "verify", false, "drain the stack and verify conservation of values")
	f.BoolVar(&flags.localPolicy, "local-policy", true, "give each goroutine its own elimination range policy, for its lifetime")

	return cmd
}

func run(cmd *cobra.Command, flags *rootFlags) error {
	strategy, err := ebstack.ParseStrategy(flags.strategy)
	if err != nil {
		return err
	}
	level, err := parseLevel(flags.logLevel)
	if err != nil {
		return err
	}
	logger := newLogger(cmd.ErrOrStderr(), level)

	seed := flags.seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	stack, err := ebstack.New[int](
		ebstack.WithStrategy(strategy),
		ebstack.WithCapacity(flags.capacity),
		ebstack.WithTimeout(flags.timeout),
		ebstack.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	logger.Info().
		Str(`strategy`, strategy.String()).
		Int(`goroutines`, flags.goroutines).
		Int(`ops`, flags.ops).
		Uint64(`seed`, seed).
		Bool(`local_policy`, flags.localPolicy).
		Log(`starting workload`)

	result, runErr := loadgen.Run(cmd.Context(), stack, loadgen.Config{
		Goroutines:  flags.goroutines,
		Ops:         flags.ops,
		Seed:        seed,
		LocalPolicy: flags.localPolicy,
	})
	if result == nil {
		return runErr
	}

	b := logger.Info()
	msg := `workload complete`
	if runErr != nil {
		b = logger.Warning().Err(runErr)
		msg = `workload interrupted`
	}
	b = b.
		Int64(`runtime_ms`, result.Duration.Milliseconds()).
		Int(`pushes`, result.Pushes).
		Int(`pops`, result.Pops).
		Int(`empty_pops`, result.EmptyPops).
		Int(`sizes`, result.Sizes).
		Int(`max_size`, result.MaxSize).
		Int(`size`, stack.Size())
	switch s := stack.(type) {
	case *ebstack.EliminationStack[int]:
		stats := s.Stats()
		b = b.
			Uint64(`eliminated_pushes`, stats.EliminatedPushes).
			Uint64(`eliminated_pops`, stats.EliminatedPops).
			Uint64(`elimination_timeouts`, stats.Timeouts).
			Uint64(`elimination_mismatches`, stats.Mismatches)
	case *ebstack.DescriptorStack[int]:
		b = b.Uint64(`completed_ops`, s.Ops())
	}
	b.Log(msg)

	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "Runtime: %dms.\n", result.Duration.Milliseconds()); err != nil {
		return err
	}

	if !flags.verify {
		return runErr
	}
	remaining := ebstack.Drain(stack)
	if err := result.Verify(remaining); err != nil {
		return errors.Join(runErr, err)
	}
	logger.Info().
		Int(`remaining`, len(remaining)).
		Log(`conservation verified`)
	return runErr
}

func newLogger(w io.Writer, level logiface.Level) *logiface.Logger[logiface.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	).Logger()
}

func parseLevel(s string) (logiface.Level, error) {
	for level := logiface.LevelDisabled; level <= logiface.LevelTrace; level++ {
		if level.String() == s {
			return level, nil
		}
	}
	return 0, fmt.Errorf(`%w: %q`, errUnknownLevel, s)
}
