package duckdb

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from adapter.Config.Params using mapstructure.
type Params struct {
	// Settings are passed to DuckDB as connection options (e.g., memory_limit, threads)
	Settings map[string]string `mapstructure:"settings"`

	// AllowWrite opens the database without access_mode=READ_ONLY.
	// Only useful for in-process fixtures; the retrieval engine never writes.
	AllowWrite bool `mapstructure:"allow_write"`
}

// parseParams decodes adapter params into Params.
func parseParams(raw map[string]any) (*Params, error) {
	p := &Params{}
	if len(raw) == 0 {
		return p, nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid duckdb params: %w", err)
	}
	return p, nil
}
