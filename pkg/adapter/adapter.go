// Package adapter provides the read-only store adapter contract and the
// shared database/sql plumbing used by concrete adapters.
//
// Concrete adapter implementations are in pkg/adapters/ subdirectories and
// register themselves by name from their init() functions.
package adapter

import "github.com/leapstack-labs/pasture/pkg/core"

// Type aliases for the contract types defined in pkg/core.
type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Column is an alias for core.Column.
	Column = core.Column

	// Metadata is an alias for core.TableMetadata.
	Metadata = core.TableMetadata

	// Rows is an alias for core.Rows.
	Rows = core.Rows
)
