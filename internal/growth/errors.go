package growth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/pasture/pkg/core"
)

var (
	// ErrCorruptRow is wrapped by CorruptRowError.
	ErrCorruptRow = errors.New("corrupt dataset row")

	// ErrIncomplete is wrapped by CompletenessError.
	ErrIncomplete = errors.New("incomplete growth data")

	// ErrRetrievalTimeout is returned when the query deadline expires.
	// A partial read is never validated.
	ErrRetrievalTimeout = errors.New("growth retrieval timed out")
)

// CorruptRowError reports a field that does not parse as its column type.
type CorruptRowError struct {
	Row    int
	Column string
	Value  any
	Err    error
}

func (e *CorruptRowError) Error() string {
	msg := fmt.Sprintf("%v: row %d column %s has value %v", ErrCorruptRow, e.Row, e.Column, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both ErrCorruptRow and the parse error.
func (e *CorruptRowError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrCorruptRow}
	}
	return []error{ErrCorruptRow, e.Err}
}

// Diagnostics identifies a request in completeness messages.
type Diagnostics struct {
	Site    core.SiteKey
	StkRate float64
}

// CompletenessError reports a gap in the monthly sequence, or no data at all.
type CompletenessError struct {
	Diagnostics
	// Missing is the first expected month without a record. Zero when Empty.
	Missing core.YearMonth
	Empty   bool

	// Duplicate marks Missing as a month that appeared twice.
	Duplicate bool
}

func (e *CompletenessError) Error() string {
	var b strings.Builder
	b.WriteString("Problem with GRASP input file.\n")
	fmt.Fprintf(&b, "For Region: %d, Soil: %d, GrassBA: %d, LandCon: %d, StkRate: %g\n",
		e.Site.Region, e.Site.Soil, e.Site.GrassBA, e.Site.LandCon, e.StkRate)
	switch {
	case e.Empty:
		b.WriteString("Unable to retrieve any data: no data retrieved for this key combination")
	case e.Duplicate:
		fmt.Fprintf(&b, "Duplicate entry for Year: %d and Month: %d", e.Missing.Year, e.Missing.Month)
	default:
		fmt.Fprintf(&b, "Missing entry for Year: %d and Month: %d", e.Missing.Year, e.Missing.Month)
	}
	return b.String()
}

func (e *CompletenessError) Unwrap() error { return ErrIncomplete }
