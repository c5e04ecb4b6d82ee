package growth

import (
	"time"

	"github.com/leapstack-labs/pasture/pkg/core"
)

// Validate checks that records cover every month from start's month up to
// effectiveEnd's month with no gaps. Records must be sorted.
//
// When effectiveEnd falls on today the simulation is at its final step and
// the window may legitimately be short, so no check is made.
func Validate(records []core.GrowthRecord, start, effectiveEnd, today time.Time, diag Diagnostics) error {
	if core.SameDay(effectiveEnd, today) {
		return nil
	}
	if len(records) == 0 {
		return &CompletenessError{Diagnostics: diag, Empty: true}
	}

	expected := core.MonthOf(start)
	for i, r := range records {
		got := r.YearMonth()
		if i > 0 && got == records[i-1].YearMonth() {
			return &CompletenessError{Diagnostics: diag, Missing: got, Duplicate: true}
		}
		if got != expected {
			return &CompletenessError{Diagnostics: diag, Missing: expected}
		}
		expected = expected.Next()
	}

	// The loop leaves expected one past the last record. The last record must
	// be the month before effectiveEnd's month.
	if end := core.MonthOf(effectiveEnd); expected != end {
		return &CompletenessError{Diagnostics: diag, Missing: expected}
	}
	return nil
}
