package testutil

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/leapstack-labs/pasture/pkg/core"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// GRASPColumns is the column layout of a GRASP native inputs table, in order.
var GRASPColumns = []string{
	"Region", "Soil", "GrassBA", "LandCon", "StkRate",
	"Year", "CutNum", "Month", "Growth", "BP1", "BP2",
}

// GrowthRow is one synthetic dataset row.
type GrowthRow struct {
	Site    core.SiteKey
	StkRate float64
	Year    int
	Month   int
	CutNum  int
	Growth  float64
	BP1     float64
	BP2     float64
}

type fixtureOptions struct {
	table string
	drop  []string
}

// FixtureOption customizes WriteGRASP.
type FixtureOption func(*fixtureOptions)

// WithTable overrides the table name (default Native_Inputs).
func WithTable(name string) FixtureOption {
	return func(o *fixtureOptions) { o.table = name }
}

// WithoutColumns omits columns from the created table.
func WithoutColumns(cols ...string) FixtureOption {
	return func(o *fixtureOptions) { o.drop = append(o.drop, cols...) }
}

// WriteGRASP creates a SQLite dataset in a temp dir and returns its path.
func WriteGRASP(t testing.TB, rows []GrowthRow, opts ...FixtureOption) string {
	t.Helper()

	o := fixtureOptions{table: "Native_Inputs"}
	for _, opt := range opts {
		opt(&o)
	}

	path := filepath.Join(t.TempDir(), "grasp.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open fixture database: %v", err)
	}
	defer func() { _ = db.Close() }()

	var cols, defs []string
	for _, c := range GRASPColumns {
		if slices.Contains(o.drop, c) {
			continue
		}
		cols = append(cols, c)
		typ := "INTEGER"
		switch c {
		case "StkRate", "Growth", "BP1", "BP2":
			typ = "REAL"
		}
		defs = append(defs, fmt.Sprintf("%q %s", c, typ))
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE %q (%s)", o.table, strings.Join(defs, ", "))); err != nil {
		t.Fatalf("failed to create fixture table: %v", err)
	}

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
		marks[i] = "?"
	}
	insert := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)", o.table, strings.Join(quoted, ", "), strings.Join(marks, ", "))

	for _, r := range rows {
		values := map[string]any{
			"Region": r.Site.Region, "Soil": r.Site.Soil, "GrassBA": r.Site.GrassBA, "LandCon": r.Site.LandCon,
			"StkRate": r.StkRate, "Year": r.Year, "CutNum": r.CutNum, "Month": r.Month,
			"Growth": r.Growth, "BP1": r.BP1, "BP2": r.BP2,
		}
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = values[c]
		}
		if _, err := db.Exec(insert, args...); err != nil {
			t.Fatalf("failed to insert fixture row: %v", err)
		}
	}

	return path
}

// ExecSQL runs raw statements against a fixture file, for shaping corrupt data.
func ExecSQL(t testing.TB, path string, statements ...string) {
	t.Helper()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open fixture database: %v", err)
	}
	defer func() { _ = db.Close() }()

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to exec %q: %v", stmt, err)
		}
	}
}

// MonthlyRows returns one row per month from first to last inclusive.
// Growth is year*100+month so tests can recognise rows by value.
func MonthlyRows(site core.SiteKey, stkRate float64, first, last core.YearMonth) []GrowthRow {
	var rows []GrowthRow
	for ym := first; !last.Before(ym); ym = ym.Next() {
		rows = append(rows, GrowthRow{
			Site:    site,
			StkRate: stkRate,
			Year:    ym.Year,
			Month:   ym.Month,
			CutNum:  ym.Month,
			Growth:  float64(ym.Year*100 + ym.Month),
			BP1:     float64(ym.Month) / 10,
			BP2:     float64(ym.Month) / 100,
		})
	}
	return rows
}

// Without returns rows minus those in the given months.
func Without(rows []GrowthRow, months ...core.YearMonth) []GrowthRow {
	out := make([]GrowthRow, 0, len(rows))
	for _, r := range rows {
		if slices.Contains(months, core.YearMonth{Year: r.Year, Month: r.Month}) {
			continue
		}
		out = append(out, r)
	}
	return out
}
