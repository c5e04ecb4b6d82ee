package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/pasture/pkg/adapter"
	"github.com/leapstack-labs/pasture/pkg/core"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

const memoryPath = ":memory:"

var dialectConfig = &core.DialectConfig{
	Name:          "sqlite",
	Identifiers:   core.ANSIIdentifiers,
	DefaultSchema: "main",
	Placeholder:   core.PlaceholderQuestion,
}

// Adapter implements the adapter.Adapter interface for SQLite.
type Adapter struct {
	adapter.BaseSQLAdapter
}

// New creates a new SQLite adapter instance.
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

// Connect opens the SQLite file read-only. The database must already exist;
// read-only mode never creates it.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	a.Cfg = cfg

	a.Logger.Debug("opening sqlite database", slog.String("path", cfg.Path))

	db, err := sql.Open("sqlite", buildDSN(cfg.Path))
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	a.DB = db
	return nil
}

// buildDSN returns a read-only URI for file databases. The path is
// percent-encoded so '?', '#' and '%' in file names survive.
func buildDSN(path string) string {
	if path == "" || path == memoryPath {
		return memoryPath
	}
	p := filepath.ToSlash(path)
	if filepath.IsAbs(path) && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file:" + (&url.URL{Path: p}).EscapedPath() + "?mode=ro&_pragma=query_only(1)"
}

// GetTableMetadata retrieves column metadata using pragma_table_info.
func (a *Adapter) GetTableMetadata(ctx context.Context, table string) (*adapter.Metadata, error) {
	if !a.IsConnected() {
		return nil, adapter.ErrNotConnected
	}

	schema, tableName := adapter.ParseQualifiedName(table, dialectConfig)

	rows, err := a.DB.QueryContext(ctx,
		`SELECT name, type, "notnull", pk, cid FROM pragma_table_info(?, ?) ORDER BY cid`,
		tableName, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to query column metadata: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var columns []core.Column
	for rows.Next() {
		var col core.Column
		var notNull, pk int
		if err := rows.Scan(&col.Name, &col.Type, &notNull, &pk, &col.Position); err != nil {
			return nil, fmt.Errorf("failed to scan column metadata: %w", err)
		}
		col.Nullable = notNull == 0
		col.PrimaryKey = pk > 0
		col.Position++
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column metadata: %w", err)
	}

	if len(columns) == 0 {
		return nil, &adapter.TableNotFoundError{Table: table}
	}

	return &core.TableMetadata{
		Schema:  schema,
		Name:    tableName,
		Columns: columns,
	}, nil
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
