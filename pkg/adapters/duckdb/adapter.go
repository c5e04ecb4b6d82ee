package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"

	"github.com/leapstack-labs/pasture/pkg/adapter"
	"github.com/leapstack-labs/pasture/pkg/core"

	goduckdb "github.com/marcboeker/go-duckdb"
)

const memoryPath = ":memory:"

var dialectConfig = &core.DialectConfig{
	Name:          "duckdb",
	Identifiers:   core.ANSIIdentifiers,
	DefaultSchema: "main",
	Placeholder:   core.PlaceholderQuestion,
}

// Adapter implements the adapter.Adapter interface for DuckDB.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new DuckDB adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
	}
}

// DialectConfig returns the static dialect configuration.
func (a *Adapter) DialectConfig() *core.DialectConfig {
	return dialectConfig
}

// FileBacked reports whether path names a file on disk rather than an
// in-memory database.
func (a *Adapter) FileBacked(path string) bool {
	return path != "" && path != memoryPath
}

// Connect establishes a read-only connection to DuckDB.
// Use ":memory:" as the path for an in-memory database.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Cfg = cfg

	params, err := parseParams(cfg.Params)
	if err != nil {
		return err
	}

	dsn := buildDSN(cfg.Path, params)
	a.Logger.Debug("connecting to duckdb", slog.String("path", cfg.Path))

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return fmt.Errorf("failed to open duckdb connection: %w", err)
	}

	// Test the connection
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping duckdb: %w", err)
	}

	a.DB = db
	return nil
}

// buildDSN constructs the DuckDB DSN. File databases are opened with
// access_mode=READ_ONLY; settings become connection options.
func buildDSN(path string, params *Params) string {
	if path == "" {
		path = memoryPath
	}

	values := url.Values{}
	if path != memoryPath && !params.AllowWrite {
		values.Set("access_mode", "READ_ONLY")
	}

	for k, v := range params.Settings {
		values.Set(k, v)
	}

	if len(values) == 0 {
		if path == memoryPath {
			return ""
		}
		return path
	}
	if path == memoryPath {
		return "?" + values.Encode()
	}
	return path + "?" + values.Encode()
}

// GetTableMetadata retrieves metadata for a specified table.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	return a.GetTableMetadataCommon(ctx, table, dialectConfig)
}

// NormalizeValue maps DECIMAL and HUGEINT cells to float64 and int64.
// Narrow integer widths pass through unchanged.
func (a *Adapter) NormalizeValue(v any) any {
	switch x := v.(type) {
	case goduckdb.Decimal:
		if x.Value == nil {
			return v
		}
		return x.Float64()
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	}
	return v
}

// Ensure Adapter implements adapter.Adapter interface
var (
	_ adapter.Adapter      = (*Adapter)(nil)
	_ core.ValueNormalizer = (*Adapter)(nil)
)
