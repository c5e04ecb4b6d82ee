package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/pasture/pkg/core"
)

// ErrNotConnected is returned by operations on an adapter without a connection.
var ErrNotConnected = errors.New("database connection not established")

// BaseSQLAdapter carries the database/sql handle shared by the concrete
// adapters and implements Close, Query and information_schema introspection.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

// Close releases the handle. Closing twice is a no-op.
func (b *BaseSQLAdapter) Close() error {
	if b.DB == nil {
		return nil
	}
	db := b.DB
	b.DB = nil
	if b.Logger != nil {
		b.Logger.Debug("closing store connection", slog.String("path", b.Cfg.Path))
	}
	return db.Close()
}

// Query runs a parameterized read. The caller closes the rows and checks Err.
func (b *BaseSQLAdapter) Query(ctx context.Context, stmt string, args ...any) (*core.Rows, error) {
	if !b.IsConnected() {
		return nil, ErrNotConnected
	}
	rows, err := b.DB.QueryContext(ctx, stmt, args...) //nolint:rowserrcheck // checked by the caller
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}
	return &core.Rows{Rows: rows}, nil
}

// IsConnected reports whether a handle is open.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// ParseQualifiedName splits "schema.table"; a bare name gets the dialect's default schema.
func ParseQualifiedName(table string, d *core.DialectConfig) (schema, name string) {
	if s, n, ok := strings.Cut(table, "."); ok && !strings.Contains(n, ".") {
		return s, n
	}
	return d.DefaultSchema, table
}

func columnsQuery(d *core.DialectConfig) string {
	return `SELECT column_name, data_type, is_nullable, ordinal_position
FROM information_schema.columns
WHERE table_schema = ` + d.FormatPlaceholder(1) + ` AND table_name = ` + d.FormatPlaceholder(2) + `
ORDER BY ordinal_position`
}

// GetTableMetadataCommon describes a table through information_schema.columns.
// A table with no visible columns yields *TableNotFoundError.
func (b *BaseSQLAdapter) GetTableMetadataCommon(ctx context.Context, table string, d *core.DialectConfig) (*core.TableMetadata, error) {
	if !b.IsConnected() {
		return nil, ErrNotConnected
	}

	schema, name := ParseQualifiedName(table, d)
	rows, err := b.DB.QueryContext(ctx, columnsQuery(d), schema, name)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	meta := &core.TableMetadata{Schema: schema, Name: name}
	for rows.Next() {
		var (
			col      core.Column
			nullable string
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable, &col.Position); err != nil {
			return nil, fmt.Errorf("describe %s: %w", table, err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		meta.Columns = append(meta.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}

	if len(meta.Columns) == 0 {
		return nil, &TableNotFoundError{Table: table}
	}
	return meta, nil
}

// TableNotFoundError is returned when introspection finds no columns for a table.
type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s not found", e.Table)
}
