// Package predicate turns a growth request into a parameterized filter over
// the (Year, Month) columns of a GRASP table.
//
// The date window is half-open: rows from Start's month up to but excluding
// End's month. Windows within one calendar year and windows that span years
// have different shapes so the filter stays a disjunction of plain column
// comparisons rather than a computed month ordinal.
package predicate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/leapstack-labs/pasture/pkg/core"
)

// ErrEmptyWindow is returned when End is not after Start.
var ErrEmptyWindow = errors.New("interval end must be after interval start")

// Filter selects the rows of one site and stocking-rate category within a month window.
type Filter struct {
	Site     core.SiteKey
	Category float64
	Start    core.YearMonth
	End      core.YearMonth
}

// Build validates the window and returns a filter.
func Build(site core.SiteKey, category float64, start, end core.YearMonth) (*Filter, error) {
	if start.Month < 1 || start.Month > 12 || end.Month < 1 || end.Month > 12 {
		return nil, fmt.Errorf("invalid month in window %s..%s", start, end)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: %s..%s", ErrEmptyWindow, start, end)
	}
	return &Filter{Site: site, Category: category, Start: start, End: end}, nil
}

// SameYear reports whether the window starts and ends in one calendar year.
func (f *Filter) SameYear() bool {
	return f.Start.Year == f.End.Year
}

// Months returns the number of months the window selects.
func (f *Filter) Months() int {
	return f.End.Ordinal() - f.Start.Ordinal()
}

// Matches evaluates the date condition for one (year, month) in memory.
// It is the same predicate SQL renders.
func (f *Filter) Matches(year, month int) bool {
	sY, sM, eY, eM := f.Start.Year, f.Start.Month, f.End.Year, f.End.Month
	if f.SameYear() {
		return year == sY && month >= sM && month < eM
	}
	return (year == sY && month >= sM) ||
		(year > sY && year < eY) ||
		(year == eY && month < eM)
}

// SQL renders a parameterized SELECT of columns from table, ordered by
// (Year, Month). Every value is bound as a parameter.
func (f *Filter) SQL(table string, columns []string, d *core.DialectConfig) (string, []any) {
	b := &sqlBuilder{d: d}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdentifier(c)
	}

	b.sb.WriteString("SELECT ")
	b.sb.WriteString(strings.Join(quoted, ", "))
	b.sb.WriteString(" FROM ")
	b.sb.WriteString(QuoteTable(table, d))
	b.sb.WriteString(" WHERE ")

	b.eq(ColRegion, f.Site.Region)
	b.sb.WriteString(" AND ")
	b.eq(ColSoil, f.Site.Soil)
	b.sb.WriteString(" AND ")
	b.eq(ColGrassBA, f.Site.GrassBA)
	b.sb.WriteString(" AND ")
	b.eq(ColLandCon, f.Site.LandCon)
	b.sb.WriteString(" AND ")
	b.eq(ColStkRate, f.Category)

	sY, sM, eY, eM := f.Start.Year, f.Start.Month, f.End.Year, f.End.Month
	b.sb.WriteString(" AND ((")
	if f.SameYear() {
		b.cmp(ColYear, "=", sY)
		b.sb.WriteString(" AND ")
		b.cmp(ColMonth, ">=", sM)
		b.sb.WriteString(" AND ")
		b.cmp(ColMonth, "<", eM)
	} else {
		b.cmp(ColYear, "=", sY)
		b.sb.WriteString(" AND ")
		b.cmp(ColMonth, ">=", sM)
		b.sb.WriteString(") OR (")
		b.cmp(ColYear, ">", sY)
		b.sb.WriteString(" AND ")
		b.cmp(ColYear, "<", eY)
		b.sb.WriteString(") OR (")
		b.cmp(ColYear, "=", eY)
		b.sb.WriteString(" AND ")
		b.cmp(ColMonth, "<", eM)
	}
	b.sb.WriteString("))")

	b.sb.WriteString(" ORDER BY ")
	b.sb.WriteString(d.QuoteIdentifier(ColYear))
	b.sb.WriteString(", ")
	b.sb.WriteString(d.QuoteIdentifier(ColMonth))

	return b.sb.String(), b.args
}

// QuoteTable quotes a table name, keeping a schema prefix separate.
func QuoteTable(table string, d *core.DialectConfig) string {
	parts := strings.Split(table, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

type sqlBuilder struct {
	d    *core.DialectConfig
	sb   strings.Builder
	args []any
}

func (b *sqlBuilder) eq(col string, v any) {
	b.cmp(col, "=", v)
}

func (b *sqlBuilder) cmp(col, op string, v any) {
	b.args = append(b.args, v)
	b.sb.WriteString(b.d.QuoteIdentifier(col))
	b.sb.WriteString(" ")
	b.sb.WriteString(op)
	b.sb.WriteString(" ")
	b.sb.WriteString(b.d.FormatPlaceholder(len(b.args)))
}
