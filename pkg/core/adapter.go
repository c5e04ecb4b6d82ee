package core

import (
	"context"
	"database/sql"
)

// Adapter defines the read-only store capability the retrieval engine consumes.
type Adapter interface {
	// Connect establishes a read-only connection to the store.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close closes the connection. Safe to call more than once.
	Close() error

	// Query executes a parameterized statement that returns rows.
	Query(ctx context.Context, sql string, args ...any) (*Rows, error)

	// GetTableMetadata retrieves column metadata for a table.
	GetTableMetadata(ctx context.Context, table string) (*TableMetadata, error)

	// DialectConfig returns the static dialect configuration.
	DialectConfig() *DialectConfig
}

// FileBacked is implemented by adapters whose Path can name a local file.
// The lifecycle manager checks the file exists before connecting.
type FileBacked interface {
	FileBacked(path string) bool
}

// ValueNormalizer is implemented by adapters whose driver scans numbers into
// driver-specific types. NormalizeValue maps such values to int64, float64 or
// string and returns anything else unchanged.
type ValueNormalizer interface {
	NormalizeValue(v any) any
}

// AdapterConfig holds configuration for connecting to a store.
type AdapterConfig struct {
	Type     string
	Path     string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	Schema   string
	Options  map[string]string
	Params   map[string]any
}

// Column represents a column in a table.
type Column struct {
	Name       string
	Type       string
	Nullable   bool
	PrimaryKey bool
	Position   int
}

// TableMetadata holds metadata about a table.
type TableMetadata struct {
	Schema  string
	Name    string
	Columns []Column
}

// HasColumn reports whether the table has a column with exactly this name.
func (m *TableMetadata) HasColumn(name string) bool {
	if m == nil {
		return false
	}
	for _, c := range m.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// ColumnNames returns the column names in ordinal order.
func (m *TableMetadata) ColumnNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, len(m.Columns))
	for i, c := range m.Columns {
		names[i] = c.Name
	}
	return names
}

// Rows wraps sql.Rows to provide a consistent interface.
type Rows struct {
	*sql.Rows
}
