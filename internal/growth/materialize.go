// Package growth turns filtered GRASP rows into ordered monthly records and
// checks that the records cover the requested window without gaps.
package growth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/leapstack-labs/pasture/internal/predicate"
	"github.com/leapstack-labs/pasture/pkg/core"
)

// Materializer runs a filter against a store and converts each row to a GrowthRecord.
type Materializer struct {
	Store core.Adapter
	Table string

	// WithCutNum selects the legacy CutNum column. Set when the table has it.
	WithCutNum bool

	Logger *slog.Logger
}

// Columns returns the columns the materializer selects, in scan order.
func (m *Materializer) Columns() []string {
	if m.WithCutNum {
		return []string{predicate.ColYear, predicate.ColCutNum, predicate.ColMonth,
			predicate.ColGrowth, predicate.ColBP1, predicate.ColBP2}
	}
	return []string{predicate.ColYear, predicate.ColMonth,
		predicate.ColGrowth, predicate.ColBP1, predicate.ColBP2}
}

// Execute runs the filter and returns records sorted by (Year, Month).
// Duplicate months keep their store order.
func (m *Materializer) Execute(ctx context.Context, f *predicate.Filter) ([]core.GrowthRecord, error) {
	logger := m.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cols := m.Columns()
	query, args := f.SQL(m.Table, cols, m.Store.DialectConfig())
	logger.Debug("running growth query",
		slog.String("site", f.Site.String()),
		slog.Float64("category", f.Category),
		slog.String("start", f.Start.String()),
		slog.String("end", f.End.String()),
		slog.Int("months", f.Months()))

	rows, err := m.Store.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapTimeout(ctx, err)
	}
	defer func() { _ = rows.Close() }()

	var records []core.GrowthRecord
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	normalizer, _ := m.Store.(core.ValueNormalizer)

	n := 0
	for rows.Next() {
		n++
		if err := rows.Scan(ptrs...); err != nil {
			return nil, wrapTimeout(ctx, fmt.Errorf("failed to scan row %d: %w", n, err))
		}
		if normalizer != nil {
			for i, v := range values {
				values[i] = normalizer.NormalizeValue(v)
			}
		}
		rec, err := m.convert(n, cols, values)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapTimeout(ctx, fmt.Errorf("failed to read rows: %w", err))
	}

	slices.SortStableFunc(records, func(a, b core.GrowthRecord) int {
		return a.YearMonth().Compare(b.YearMonth())
	})

	logger.Debug("growth query complete", slog.Int("rows", len(records)))
	return records, nil
}

func (m *Materializer) convert(row int, cols []string, values []any) (core.GrowthRecord, error) {
	var rec core.GrowthRecord
	for i, col := range cols {
		var err error
		switch col {
		case predicate.ColYear:
			rec.Year, err = toInt(values[i])
		case predicate.ColMonth:
			rec.Month, err = toInt(values[i])
			if err == nil && (rec.Month < 1 || rec.Month > 12) {
				err = fmt.Errorf("month out of range")
			}
		case predicate.ColCutNum:
			rec.CutNum, err = toInt(values[i])
		case predicate.ColGrowth:
			rec.Growth, err = toFloat(values[i])
		case predicate.ColBP1:
			rec.BP1, err = toFloat(values[i])
		case predicate.ColBP2:
			rec.BP2, err = toFloat(values[i])
		}
		if err != nil {
			return core.GrowthRecord{}, &CorruptRowError{Row: row, Column: col, Value: printable(values[i]), Err: err}
		}
	}
	return rec, nil
}

func printable(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func wrapTimeout(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrRetrievalTimeout, err)
	}
	return err
}
