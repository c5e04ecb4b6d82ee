package commands

import (
	"fmt"

	"github.com/leapstack-labs/pasture/internal/cli/output"
)

// emit writes structured output for machine modes and a table otherwise.
func emit(r *output.Renderer, v any, headers []string, rows [][]any) error {
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return r.JSON(v)
	case output.ModeYAML:
		return r.YAML(v)
	}
	r.Table(headers, rows)
	return nil
}

// structured reports whether the renderer emits machine-readable documents.
func structured(r *output.Renderer) bool {
	m := r.EffectiveMode()
	return m == output.ModeJSON || m == output.ModeYAML
}

// document writes v as JSON or YAML.
func document(r *output.Renderer, v any) error {
	if r.EffectiveMode() == output.ModeYAML {
		return r.YAML(v)
	}
	return r.JSON(v)
}

// FormatKV formats a labelled value for the renderer's mode.
func FormatKV(r *output.Renderer, key string, value any) string {
	if r.EffectiveMode() == output.ModeMarkdown {
		return output.FormatKeyValue(key, value)
	}
	return fmt.Sprintf("%s %v", r.Styles.Bold.Render(key+":"), value)
}
