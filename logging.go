package ebstack

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// logCategory identifies a class of hot-path log event, for rate limiting.
type logCategory int

const (
	logCategoryRangeSaturated logCategory = iota
	logCategoryRangeCollapsed
	logCategoryLateWithdrawal
	logCategoryKindMismatch
)

// stackLogger wraps the optional logger, limiting events emitted from the
// elimination path. The zero value (and nil) logs nothing.
type stackLogger struct {
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
}

func newStackLogger(opts *stackOptions) (*stackLogger, error) {
	x := stackLogger{logger: opts.logger}
	if x.logger != nil && len(opts.logRates) != 0 {
		limiter, err := newLogLimiter(opts.logRates)
		if err != nil {
			return nil, err
		}
		x.limiter = limiter
	}
	return &x, nil
}

// catrate panics on invalid rates, which are caller input, in this case
func newLogLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			limiter = nil
			err = fmt.Errorf(`%w: %v`, ErrInvalidLogRates, r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// limited returns a builder for the given level, or nil if the level is
// disabled, or the category has exceeded its rate.
func (x *stackLogger) limited(category logCategory, level logiface.Level) *logiface.Builder[logiface.Event] {
	if x == nil || x.logger == nil {
		return nil
	}
	b := x.logger.Build(level)
	if !b.Enabled() {
		return nil
	}
	if x.limiter != nil {
		if _, ok := x.limiter.Allow(category); !ok {
			b.Release()
			return nil
		}
	}
	return b
}

func (x *stackLogger) initialized(strategy Strategy, opts *stackOptions) {
	if x == nil || x.logger == nil {
		return
	}
	x.logger.Debug().
		Str(`strategy`, strategy.String()).
		Int(`capacity`, opts.capacity).
		Dur(`timeout`, opts.timeout).
		Log(`stack initialized`)
}

func (x *stackLogger) rangeSaturated(max int) {
	if b := x.limited(logCategoryRangeSaturated, logiface.LevelDebug); b != nil {
		b.Int(`range`, max).Log(`elimination range saturated`)
	}
}

func (x *stackLogger) rangeCollapsed(from int) {
	if b := x.limited(logCategoryRangeCollapsed, logiface.LevelDebug); b != nil {
		b.Int(`from`, from).Log(`elimination range collapsed`)
	}
}

func (x *stackLogger) lateWithdrawal(index int) {
	if b := x.limited(logCategoryLateWithdrawal, logiface.LevelTrace); b != nil {
		b.Int(`exchanger`, index).Log(`elimination withdrawal lost to partner`)
	}
}

func (x *stackLogger) kindMismatch(kind opKind) {
	if b := x.limited(logCategoryKindMismatch, logiface.LevelTrace); b != nil {
		b.Str(`kind`, kind.String()).Log(`elimination kind mismatch`)
	}
}
