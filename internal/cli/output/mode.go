// Package output renders command results for terminals, agents and scripts.
//
// Output adapts to the environment. A terminal gets styled text; a pipe gets
// markdown. JSON, CSV and YAML are available on request.
package output

import "strings"

// OutputMode selects how a Renderer formats results.
type OutputMode string

// Output modes.
const (
	ModeAuto     OutputMode = "auto"
	ModeText     OutputMode = "text"
	ModeMarkdown OutputMode = "markdown"
	ModeJSON     OutputMode = "json"
	ModeCSV      OutputMode = "csv"
	ModeYAML     OutputMode = "yaml"
)

// Modes lists every accepted mode, for flag completion and validation.
var Modes = []OutputMode{ModeAuto, ModeText, ModeMarkdown, ModeJSON, ModeCSV, ModeYAML}

// Mode parses a configured mode. Empty and unknown values mean auto;
// "table" and "md" are accepted aliases.
func Mode(s string) OutputMode {
	switch m := OutputMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "table":
		return ModeText
	case "md":
		return ModeMarkdown
	case ModeText, ModeMarkdown, ModeJSON, ModeCSV, ModeYAML:
		return m
	}
	return ModeAuto
}

// Valid reports whether s names a known mode or alias.
func Valid(s string) bool {
	if s == "" {
		return true
	}
	return Mode(s) != ModeAuto || strings.EqualFold(strings.TrimSpace(s), string(ModeAuto))
}
