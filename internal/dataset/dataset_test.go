package dataset

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/leapstack-labs/pasture/internal/category"
	"github.com/leapstack-labs/pasture/internal/clock"
	"github.com/leapstack-labs/pasture/internal/growth"
	"github.com/leapstack-labs/pasture/internal/testutil"
	"github.com/leapstack-labs/pasture/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/leapstack-labs/pasture/pkg/adapters/sqlite"
)

var site = core.SiteKey{Region: 1, Soil: 2, GrassBA: 3, LandCon: 4}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ym(y, m int) core.YearMonth { return core.YearMonth{Year: y, Month: m} }

// standardRows covers 2010-2011 for categories 5 and 10. Rate 10 rows have
// growth offset by 0.5 so tests can tell the categories apart.
func standardRows() []testutil.GrowthRow {
	rows := testutil.MonthlyRows(site, 5, ym(2010, 1), ym(2011, 12))
	for _, r := range testutil.MonthlyRows(site, 10, ym(2010, 1), ym(2011, 12)) {
		r.Growth += 0.5
		rows = append(rows, r)
	}
	return rows
}

type captureRecorder struct {
	mu         sync.Mutex
	ops        map[string][]bool
	categories int
}

func (c *captureRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ops == nil {
		c.ops = make(map[string][]bool)
	}
	c.ops[op] = append(c.ops[op], success)
}

func (c *captureRecorder) SetCategories(n int) { c.categories = n }

func openDataset(t *testing.T, path string, opts Options) *Dataset {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = clock.Fixed{Now: date(2015, 1, 1), End: date(2020, 12, 31)}
	}
	opts.Logger = testutil.NewTestLogger(t)
	d := New(opts)
	t.Cleanup(func() { _ = d.Close() })
	require.Empty(t, d.OpenAndValidate(context.Background(), path))
	return d
}

func months(records []core.GrowthRecord) []core.YearMonth {
	out := make([]core.YearMonth, len(records))
	for i, r := range records {
		out[i] = r.YearMonth()
	}
	return out
}

func TestOpenAndValidate_Problems(t *testing.T) {
	tests := []struct {
		name   string
		path   func(t *testing.T) string
		opts   Options
		fields []string
		msg    string
	}{
		{
			name:   "no path",
			path:   func(*testing.T) string { return "" },
			fields: []string{FieldPath},
			msg:    "not set",
		},
		{
			name:   "missing file",
			path:   func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.db") },
			fields: []string{FieldPath},
			msg:    "could not be found",
		},
		{
			name:   "unknown adapter",
			path:   func(t *testing.T) string { return testutil.WriteGRASP(t, nil) },
			opts:   Options{Adapter: "oracle"},
			fields: []string{FieldAdapter},
			msg:    `unknown adapter type "oracle"`,
		},
		{
			name:   "missing columns are all reported",
			path:   func(t *testing.T) string { return testutil.WriteGRASP(t, nil, testutil.WithoutColumns("BP1", "GrassBA")) },
			fields: []string{FieldColumn, FieldColumn},
			msg:    "Unable to find column GrassBA in GRASP database",
		},
		{
			name: "missing table",
			path: func(t *testing.T) string { return testutil.WriteGRASP(t, nil, testutil.WithTable("Other")) },
			fields: []string{
				FieldColumn, FieldColumn, FieldColumn, FieldColumn, FieldColumn,
				FieldColumn, FieldColumn, FieldColumn, FieldColumn, FieldColumn,
			},
			msg: "Unable to find column Region",
		},
		{
			name: "null stocking rate",
			path: func(t *testing.T) string {
				p := testutil.WriteGRASP(t, standardRows())
				testutil.ExecSQL(t, p, `INSERT INTO "Native_Inputs" ("Region", "Year", "Month") VALUES (9, 2010, 1)`)
				return p
			},
			fields: []string{FieldIndex},
			msg:    "failed to initialize dataset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.Logger = testutil.NewTestLogger(t)
			d := New(opts)
			defer func() { _ = d.Close() }()

			problems := d.OpenAndValidate(context.Background(), tt.path(t))
			require.Len(t, problems, len(tt.fields))

			var fields []string
			for _, p := range problems {
				fields = append(fields, p.Field)
			}
			assert.Equal(t, tt.fields, fields)
			assert.Contains(t, problems.Error(), tt.msg)
			assert.Error(t, problems.Err())
			assert.False(t, d.Ready())
			assert.Nil(t, d.Categories())

			_, err := d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 5, Start: date(2010, 1, 1), Months: 1})
			assert.ErrorIs(t, err, ErrNotReady)
		})
	}
}

func TestOpenAndValidate_BuildsCategories(t *testing.T) {
	path := testutil.WriteGRASP(t, standardRows())
	rec := &captureRecorder{}
	d := openDataset(t, path, Options{Metrics: rec})

	assert.True(t, d.Ready())
	assert.Equal(t, path, d.Path())
	assert.Equal(t, []float64{5, 10}, d.Categories().Values())
	assert.Equal(t, 2, rec.categories)
	assert.Equal(t, []bool{true}, rec.ops["open"])
	assert.Equal(t, []bool{true}, rec.ops["categories"])

	// Rebuilding from the same dataset yields an equal index.
	first := d.Categories()
	require.Empty(t, d.OpenAndValidate(context.Background(), path))
	assert.True(t, first.Equal(d.Categories()))
}

func TestValidateSchema(t *testing.T) {
	d := New(Options{})
	assert.NotEmpty(t, d.ValidateSchema(context.Background()))

	d = openDataset(t, testutil.WriteGRASP(t, standardRows()), Options{})
	assert.Empty(t, d.ValidateSchema(context.Background()))
}

func TestClose_Idempotent(t *testing.T) {
	assert.NoError(t, New(Options{}).Close(), "close on a never-opened dataset")

	d := openDataset(t, testutil.WriteGRASP(t, standardRows()), Options{})
	assert.NoError(t, d.Close())
	assert.NoError(t, d.Close())
	assert.False(t, d.Ready())

	_, err := d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 5, Start: date(2010, 1, 1), Months: 1})
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestEffectiveEnd(t *testing.T) {
	clk := clock.Fixed{End: date(2011, 2, 15)}

	assert.Equal(t, date(2010, 6, 1), EffectiveEnd(date(2010, 3, 1), 2, clk), "one month of lookahead")
	assert.Equal(t, date(2011, 2, 15), EffectiveEnd(date(2010, 11, 1), 3, clk), "clamped to the end date")
	assert.Equal(t, date(2010, 2, 28), EffectiveEnd(date(2010, 1, 31), 0, clk), "day clamped to month length")
}

func TestIntervalRecords(t *testing.T) {
	path := testutil.WriteGRASP(t, standardRows())

	tests := []struct {
		name  string
		clock core.Clock
		req   Request
		want  []core.YearMonth
	}{
		{
			name:  "same year",
			clock: clock.Fixed{Now: date(2015, 1, 1), End: date(2020, 1, 1)},
			req:   Request{Site: site, StkRate: 5, Start: date(2010, 3, 1), Months: 2},
			want:  []core.YearMonth{ym(2010, 3), ym(2010, 4), ym(2010, 5)},
		},
		{
			name:  "cross year clamped by end date",
			clock: clock.Fixed{Now: date(2010, 11, 1), End: date(2011, 2, 15)},
			req:   Request{Site: site, StkRate: 5, Start: date(2010, 11, 1), Months: 3},
			want:  []core.YearMonth{ym(2010, 11), ym(2010, 12), ym(2011, 1)},
		},
		{
			name:  "full year",
			clock: clock.Fixed{Now: date(2015, 1, 1), End: date(2020, 1, 1)},
			req:   Request{Site: site, StkRate: 5, Start: date(2010, 6, 1), Months: 12},
			want: []core.YearMonth{
				ym(2010, 6), ym(2010, 7), ym(2010, 8), ym(2010, 9), ym(2010, 10), ym(2010, 11), ym(2010, 12),
				ym(2011, 1), ym(2011, 2), ym(2011, 3), ym(2011, 4), ym(2011, 5), ym(2011, 6),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := openDataset(t, path, Options{Clock: tt.clock})
			got, err := d.IntervalRecords(context.Background(), tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, months(got))
			assert.Equal(t, got[0].Month, got[0].CutNum, "legacy column carried through")
		})
	}
}

func TestIntervalRecords_RoundsRateUp(t *testing.T) {
	d := openDataset(t, testutil.WriteGRASP(t, standardRows()), Options{})

	got, err := d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 5.01, Start: date(2010, 3, 1), Months: 0})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 201003.5, got[0].Growth, 1e-9, "resolved to category 10")

	got, err = d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 0.5, Start: date(2010, 3, 1), Months: 0})
	require.NoError(t, err)
	assert.InDelta(t, 201003.0, got[0].Growth, 1e-9, "resolved to category 5")
}

func TestIntervalRecords_AboveMaximum(t *testing.T) {
	path := testutil.WriteGRASP(t, standardRows())
	req := Request{Site: site, StkRate: 12, Start: date(2010, 3, 1), Months: 1}

	strict := openDataset(t, path, Options{AbovePolicy: category.PolicyStrict})
	_, err := strict.IntervalRecords(context.Background(), req)
	assert.ErrorIs(t, err, category.ErrRateAboveCategories)

	clamp := openDataset(t, path, Options{AbovePolicy: category.PolicyClamp})
	got, err := clamp.IntervalRecords(context.Background(), req)
	require.NoError(t, err)
	assert.InDelta(t, 201003.5, got[0].Growth, 1e-9)
}

func TestIntervalRecords_Gap(t *testing.T) {
	rows := testutil.Without(standardRows(), ym(2010, 5))
	d := openDataset(t, testutil.WriteGRASP(t, rows), Options{})

	_, err := d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 5, Start: date(2010, 1, 1), Months: 12})
	require.Error(t, err)
	assert.ErrorIs(t, err, growth.ErrIncomplete)
	assert.Contains(t, err.Error(), "Year: 2010 and Month: 5")
}

func TestIntervalRecords_Empty(t *testing.T) {
	d := openDataset(t, testutil.WriteGRASP(t, standardRows()), Options{})
	other := core.SiteKey{Region: 9, Soil: 9, GrassBA: 9, LandCon: 9}

	_, err := d.IntervalRecords(context.Background(), Request{Site: other, StkRate: 5, Start: date(2010, 1, 1), Months: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no data retrieved")
}

func TestIntervalRecords_CurrentPeriodSkip(t *testing.T) {
	rows := testutil.MonthlyRows(site, 5, ym(2010, 1), ym(2010, 4))
	d := openDataset(t, testutil.WriteGRASP(t, rows), Options{
		Clock: clock.Fixed{Now: date(2010, 6, 15), End: date(2010, 6, 15)},
	})

	got, err := d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 5, Start: date(2010, 3, 1), Months: 12})
	require.NoError(t, err)
	assert.Equal(t, []core.YearMonth{ym(2010, 3), ym(2010, 4)}, months(got))

	// Start and end in the same month on the final step.
	got, err = d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 5, Start: date(2010, 6, 1), Months: 1})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestIntervalRecords_InvalidRequest(t *testing.T) {
	d := openDataset(t, testutil.WriteGRASP(t, standardRows()), Options{
		Clock: clock.Fixed{Now: date(2015, 1, 1), End: date(2010, 3, 10)},
	})

	_, err := d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 5, Start: date(2010, 3, 1), Months: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 5, Months: 1})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestIntervalRecords_TruncatedBeforeFinalStep(t *testing.T) {
	d := openDataset(t, testutil.WriteGRASP(t, standardRows()), Options{
		Clock: clock.Fixed{Now: date(2010, 1, 1), End: date(2010, 12, 31)},
	})

	// The end date cuts the window to nothing while today is not the end.
	_, err := d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 5, Start: date(2010, 12, 1), Months: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, growth.ErrIncomplete)
	assert.NotErrorIs(t, err, ErrInvalidRequest)

	var incomplete *growth.CompletenessError
	require.ErrorAs(t, err, &incomplete)
	assert.True(t, incomplete.Empty)
	assert.Contains(t, err.Error(), "no data retrieved")
}

func TestIntervalRecords_CorruptRow(t *testing.T) {
	path := testutil.WriteGRASP(t, standardRows())
	testutil.ExecSQL(t, path, `UPDATE "Native_Inputs" SET "Growth" = 'n/a' WHERE "Year" = 2010 AND "Month" = 4`)
	d := openDataset(t, path, Options{})

	_, err := d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 5, Start: date(2010, 3, 1), Months: 2})
	var corrupt *growth.CorruptRowError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, "Growth", corrupt.Column)
}

func TestIntervalRecords_Concurrent(t *testing.T) {
	rec := &captureRecorder{}
	d := openDataset(t, testutil.WriteGRASP(t, standardRows()), Options{Metrics: rec})

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := date(2010, time.Month(i+1), 1)
			got, err := d.IntervalRecords(context.Background(), Request{Site: site, StkRate: 5, Start: start, Months: 3})
			if err == nil && len(got) != 4 {
				err = assert.AnError
			}
			errs[i] = err
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, rec.ops["interval"], 8)
}
