// Package dataset owns the lifecycle of a GRASP growth dataset and answers
// growth-interval requests against it.
//
// A Dataset is opened and validated once, which also builds the stocking-rate
// Category Index. IntervalRecords then resolves the requested rate to a
// category, filters the store by site and month window, and checks that the
// result has no missing months. Store access is serialized, so a Dataset may
// be shared between goroutines.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/leapstack-labs/pasture/internal/category"
	"github.com/leapstack-labs/pasture/internal/clock"
	"github.com/leapstack-labs/pasture/internal/growth"
	"github.com/leapstack-labs/pasture/internal/metrics"
	"github.com/leapstack-labs/pasture/internal/predicate"
	"github.com/leapstack-labs/pasture/pkg/adapter"
	"github.com/leapstack-labs/pasture/pkg/core"
)

// Defaults applied by New.
const (
	DefaultAdapter      = "sqlite"
	DefaultTable        = "Native_Inputs"
	DefaultQueryTimeout = 30 * time.Second
)

var (
	// ErrNotReady is returned by queries on a dataset that is not open and valid.
	ErrNotReady = errors.New("dataset is not open and validated")

	// ErrInitialization wraps failures to build the Category Index.
	ErrInitialization = errors.New("failed to initialize dataset")

	// ErrInvalidRequest is returned for requests that cannot describe a window.
	ErrInvalidRequest = errors.New("invalid growth request")
)

// Options configures a Dataset.
type Options struct {
	// Adapter is the registered store type. Default sqlite.
	Adapter string
	// Connection carries server settings (host, credentials, params).
	// Type and Path are filled in by OpenAndValidate.
	Connection core.AdapterConfig
	// Table holds the growth rows. Default Native_Inputs.
	Table string

	AbovePolicy  category.Policy
	QueryTimeout time.Duration

	// Clock supplies today and the simulation end date. Default is a wall
	// clock with no end date.
	Clock   core.Clock
	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Request asks for growth records for one site and stocking rate, starting
// at Start and covering Months months.
type Request struct {
	Site    core.SiteKey `json:"site" yaml:"site"`
	StkRate float64      `json:"stk_rate" yaml:"stk_rate"`
	Start   time.Time    `json:"start" yaml:"start"`
	Months  int          `json:"months" yaml:"months"`
}

// Dataset is a GRASP dataset handle.
type Dataset struct {
	opts Options

	mu        sync.Mutex
	path      string
	store     core.Adapter
	index     *category.Index
	hasCutNum bool
	ready     bool
}

// New returns an unopened dataset.
func New(opts Options) *Dataset {
	if opts.Adapter == "" {
		opts.Adapter = DefaultAdapter
	}
	if opts.Table == "" {
		opts.Table = DefaultTable
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = DefaultQueryTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Wall{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	return &Dataset{opts: opts}
}

// Path returns the path of the open dataset.
func (d *Dataset) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// Ready reports whether the last OpenAndValidate found no problems.
func (d *Dataset) Ready() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ready
}

// OpenAndValidate opens the store at path read-only, checks the schema and
// builds the Category Index. It returns every problem found; an empty result
// means the dataset is ready. Any previously open store is closed first.
func (d *Dataset) OpenAndValidate(ctx context.Context, path string) Problems {
	started := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.closeLocked(); err != nil {
		d.opts.Logger.Warn("failed to close previous dataset", slog.String("error", err.Error()))
	}

	problems := d.openLocked(ctx, path)
	d.ready = len(problems) == 0
	d.opts.Metrics.Observe(ctx, metrics.OpOpen, d.ready, time.Since(started))

	if d.ready {
		d.opts.Logger.Info("dataset ready",
			slog.String("path", path),
			slog.String("adapter", d.opts.Adapter),
			slog.Int("categories", d.index.Len()))
	} else {
		d.opts.Logger.Warn("dataset has problems", slog.String("path", path), slog.Int("problems", len(problems)))
	}
	return problems
}

func (d *Dataset) openLocked(ctx context.Context, path string) Problems {
	if path == "" {
		return Problems{{Field: FieldPath, Message: "Dataset path is not set"}}
	}
	d.path = path

	store, err := adapter.NewAdapter(core.AdapterConfig{Type: d.opts.Adapter}, d.opts.Logger)
	if err != nil {
		return Problems{{Field: FieldAdapter, Message: err.Error()}}
	}

	if fb, ok := store.(core.FileBacked); ok && fb.FileBacked(path) {
		if _, err := os.Stat(path); err != nil {
			return Problems{{Field: FieldPath, Message: fmt.Sprintf("This GRASP database (%s) could not be found", path)}}
		}
	}

	cfg := d.opts.Connection
	cfg.Type = d.opts.Adapter
	cfg.Path = path
	if err := store.Connect(ctx, cfg); err != nil {
		return Problems{{Field: FieldStore, Message: fmt.Sprintf("There was a problem opening the GRASP database (%s)\n%v", path, err)}}
	}
	d.store = store

	problems := d.validateSchemaLocked(ctx)
	if len(problems) > 0 {
		return problems
	}

	index, err := d.loadCategoriesLocked(ctx)
	if err != nil {
		return Problems{{Field: FieldIndex, Message: err.Error()}}
	}
	d.index = index
	d.opts.Metrics.SetCategories(index.Len())
	return nil
}

// ValidateSchema re-checks the required columns of the open dataset.
func (d *Dataset) ValidateSchema(ctx context.Context) Problems {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.store == nil {
		return Problems{{Field: FieldStore, Message: ErrNotReady.Error()}}
	}
	return d.validateSchemaLocked(ctx)
}

func (d *Dataset) validateSchemaLocked(ctx context.Context) Problems {
	meta, err := d.store.GetTableMetadata(ctx, d.opts.Table)
	var notFound *adapter.TableNotFoundError
	if err != nil && !errors.As(err, &notFound) {
		return Problems{{Field: FieldStore, Message: fmt.Sprintf("There was a problem reading table %s of the GRASP database (%s)\n%v", d.opts.Table, d.path, err)}}
	}

	// A missing table reports every required column.
	var problems Problems
	for _, col := range predicate.RequiredColumns {
		if !meta.HasColumn(col) {
			problems = append(problems, Problem{
				Field:   FieldColumn,
				Message: fmt.Sprintf("Unable to find column %s in GRASP database (%s)", col, d.path),
			})
		}
	}
	d.hasCutNum = meta.HasColumn(predicate.ColCutNum)
	return problems
}

func (d *Dataset) loadCategoriesLocked(ctx context.Context) (*category.Index, error) {
	started := time.Now()
	index, err := d.queryCategories(ctx)
	d.opts.Metrics.Observe(ctx, metrics.OpCategories, err == nil, time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}
	return index, nil
}

func (d *Dataset) queryCategories(ctx context.Context) (*category.Index, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.QueryTimeout)
	defer cancel()

	dialect := d.store.DialectConfig()
	col := dialect.QuoteIdentifier(predicate.ColStkRate)
	query := fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY %s", col, predicate.QuoteTable(d.opts.Table, dialect), col)

	rows, err := d.store.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load stocking rate categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var values []float64
	for rows.Next() {
		var v *float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to read stocking rate category: %w", err)
		}
		if v == nil {
			return nil, fmt.Errorf("dataset contains a null %s", predicate.ColStkRate)
		}
		values = append(values, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stocking rate categories: %w", err)
	}
	return category.New(values, d.opts.AbovePolicy), nil
}

// Categories returns the Category Index, or nil when the dataset is not ready.
func (d *Dataset) Categories() *category.Index {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ready {
		return nil
	}
	return d.index
}

// Close releases the store. It is safe to call more than once, and on a
// dataset that was never opened.
func (d *Dataset) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeLocked()
}

func (d *Dataset) closeLocked() error {
	d.ready = false
	d.index = nil
	if d.store == nil {
		return nil
	}
	err := d.store.Close()
	d.store = nil
	if err != nil {
		return fmt.Errorf("failed to close dataset: %w", err)
	}
	return nil
}

// EffectiveEnd is the exclusive upper bound of a request: one month past the
// nominal window, clamped to the simulation end date.
func EffectiveEnd(start time.Time, months int, clk core.Clock) time.Time {
	end := core.AddMonths(start, months+1)
	if last := clk.EndDate(); last.Before(end) {
		return last
	}
	return end
}

// IntervalRecords returns the monthly growth records for req, in
// chronological order, after checking there are no missing months.
func (d *Dataset) IntervalRecords(ctx context.Context, req Request) ([]core.GrowthRecord, error) {
	started := time.Now()
	records, err := d.intervalRecords(ctx, req)
	d.opts.Metrics.Observe(ctx, metrics.OpInterval, err == nil, time.Since(started))
	return records, err
}

func (d *Dataset) intervalRecords(ctx context.Context, req Request) ([]core.GrowthRecord, error) {
	if req.Months < 0 {
		return nil, fmt.Errorf("%w: months must not be negative, got %d", ErrInvalidRequest, req.Months)
	}
	if req.Start.IsZero() {
		return nil, fmt.Errorf("%w: start date is not set", ErrInvalidRequest)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return nil, ErrNotReady
	}

	cat, err := d.index.Resolve(req.StkRate)
	if err != nil {
		return nil, err
	}

	today := d.opts.Clock.Today()
	end := EffectiveEnd(req.Start, req.Months, d.opts.Clock)
	diag := growth.Diagnostics{Site: req.Site, StkRate: req.StkRate}

	logger := d.opts.Logger.With(
		slog.String("site", req.Site.String()),
		slog.Float64("stk_rate", req.StkRate),
		slog.Float64("category", cat))

	filter, err := predicate.Build(req.Site, cat, core.MonthOf(req.Start), core.MonthOf(end))
	if errors.Is(err, predicate.ErrEmptyWindow) {
		// The clock's end date truncated the window to nothing. Only the
		// final simulation step may ask for that.
		if core.SameDay(end, today) {
			logger.Debug("empty window on final step")
			return []core.GrowthRecord{}, nil
		}
		// Months were asked for and none can come back.
		return nil, &growth.CompletenessError{Diagnostics: diag, Empty: true}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	m := &growth.Materializer{
		Store:      d.store,
		Table:      d.opts.Table,
		WithCutNum: d.hasCutNum,
		Logger:     logger,
	}

	qctx, cancel := context.WithTimeout(ctx, d.opts.QueryTimeout)
	defer cancel()

	records, err := m.Execute(qctx, filter)
	if err != nil {
		return nil, err
	}

	if err := growth.Validate(records, req.Start, end, today, diag); err != nil {
		return nil, err
	}
	if records == nil {
		records = []core.GrowthRecord{}
	}
	return records, nil
}
