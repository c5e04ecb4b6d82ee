package core

import (
	"strconv"
	"strings"
)

// DialectConfig holds the static configuration for a SQL dialect.
// This is pure data plus the two formatting helpers the query builder needs.
type DialectConfig struct {
	// Name is the dialect identifier (e.g., "sqlite", "duckdb", "postgres")
	Name string

	// Identifiers defines quoting rules
	Identifiers IdentifierConfig

	// DefaultSchema is the default schema name ("main" for DuckDB and SQLite, "public" for Postgres)
	DefaultSchema string

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle
}

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// IdentifierConfig defines how identifiers are quoted.
type IdentifierConfig struct {
	Quote    string // Quote character: ", `, [
	QuoteEnd string // End quote character (usually same as Quote, ] for [)
	Escape   string // Escape sequence: "", ``, ]]
}

// ANSIIdentifiers is the double-quote identifier style shared by SQLite, DuckDB and Postgres.
var ANSIIdentifiers = IdentifierConfig{Quote: `"`, QuoteEnd: `"`, Escape: `""`}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
// Returns "?" for PlaceholderQuestion style, "$1", "$2" etc. for PlaceholderDollar style.
func (d *DialectConfig) FormatPlaceholder(index int) string {
	if d != nil && d.Placeholder == PlaceholderDollar {
		return "$" + strconv.Itoa(index)
	}
	return "?"
}

// QuoteIdentifier quotes a table or column name so mixed-case names such as
// "GrassBA" survive case-folding dialects.
func (d *DialectConfig) QuoteIdentifier(name string) string {
	ids := ANSIIdentifiers
	if d != nil && d.Identifiers.Quote != "" {
		ids = d.Identifiers
	}
	end := ids.QuoteEnd
	if end == "" {
		end = ids.Quote
	}
	escape := ids.Escape
	if escape == "" {
		escape = end + end
	}
	return ids.Quote + strings.ReplaceAll(name, end, escape) + end
}
