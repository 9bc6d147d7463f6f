package ebstack

// RangePolicy tracks the sub-range of the elimination array that a single
// goroutine samples from. Successful eliminations widen the range, since
// under load a wider range spreads visitors across more exchangers. Timeouts
// narrow it, back toward the single exchanger most likely to have a partner.
//
// The range is always within [1, Max()], and starts at 1. RangePolicy is not
// safe for concurrent use, it's intended to be owned by one goroutine, see
// also EliminationStack.Local.
type RangePolicy struct {
	current int
	max     int
}

// NewRangePolicy initializes a RangePolicy bounded by max, which should be
// the capacity of the elimination array. A panic will occur if max is not
// positive.
func NewRangePolicy(max int) *RangePolicy {
	if max <= 0 {
		panic(`ebstack: range policy: max must be positive`)
	}
	return &RangePolicy{current: 1, max: max}
}

// RecordEliminationSuccess widens the range by one, up to Max().
func (x *RangePolicy) RecordEliminationSuccess() {
	if x.current < x.max {
		x.current++
	}
}

// RecordEliminationTimeout narrows the range by one, down to 1.
func (x *RangePolicy) RecordEliminationTimeout() {
	if x.current > 1 {
		x.current--
	}
}

// Range returns the current range.
func (x *RangePolicy) Range() int {
	return x.current
}

// Max returns the upper bound of the range.
func (x *RangePolicy) Max() int {
	return x.max
}
