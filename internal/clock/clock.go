// Package clock provides simulation clocks for the retrieval engine.
package clock

import (
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/pasture/pkg/core"
)

var (
	_ core.Clock = Fixed{}
	_ core.Clock = Wall{}
	_ core.Clock = (*Stepper)(nil)
)

// Wall reports the real current date. A zero End means the simulation has no
// end date.
type Wall struct {
	End time.Time
	Loc *time.Location
}

// Today returns midnight of the current day.
func (w Wall) Today() time.Time {
	loc := w.Loc
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := time.Now().In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// EndDate returns End, or 9999-12-31 when End is zero.
func (w Wall) EndDate() time.Time {
	if w.End.IsZero() {
		return time.Date(9999, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return w.End
}

// Fixed is a clock that never moves.
type Fixed struct {
	Now time.Time
	End time.Time
}

// Today returns Now.
func (f Fixed) Today() time.Time { return f.Now }

// EndDate returns End.
func (f Fixed) EndDate() time.Time { return f.End }

// ErrInvalidSpan is returned when a stepper's end is not after its start.
var ErrInvalidSpan = errors.New("simulation end must be after start")

// Stepper walks from a start date to an end date in whole-month steps.
// The final step lands on the end date.
type Stepper struct {
	end   time.Time
	step  int
	today time.Time
	steps int
}

// NewStepper returns a clock positioned at start.
func NewStepper(start, end time.Time, stepMonths int) (*Stepper, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: %s..%s", ErrInvalidSpan, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	if stepMonths < 1 {
		return nil, fmt.Errorf("step must be at least one month, got %d", stepMonths)
	}
	return &Stepper{end: end, step: stepMonths, today: start}, nil
}

// Today returns the current simulated date.
func (s *Stepper) Today() time.Time { return s.today }

// EndDate returns the final simulated date.
func (s *Stepper) EndDate() time.Time { return s.end }

// StepMonths returns the step length.
func (s *Stepper) StepMonths() int { return s.step }

// Steps returns how many times the clock has advanced.
func (s *Stepper) Steps() int { return s.steps }

// Done reports whether the clock has reached the end date.
func (s *Stepper) Done() bool { return !s.today.Before(s.end) }

// Advance moves the clock one step, stopping at the end date.
// It returns false when the clock was already done.
func (s *Stepper) Advance() bool {
	if s.Done() {
		return false
	}
	next := core.AddMonths(s.today, s.step)
	if next.After(s.end) {
		next = s.end
	}
	s.today = next
	s.steps++
	return true
}

