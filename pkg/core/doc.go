// Package core defines the shared language of the pasture system.
//
// This package contains:
//   - Domain values (SiteKey, YearMonth, GrowthRecord)
//   - Service interfaces (Adapter, Clock)
//   - Store configuration types (AdapterConfig, DialectConfig)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
