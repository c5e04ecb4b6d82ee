package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used for terminal output.
type Styles struct {
	Header  lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer, so colour support
// follows the destination writer.
func NewStyles(lg *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:  lg.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Bold:    lg.NewStyle().Bold(true),
		Muted:   lg.NewStyle().Foreground(lipgloss.Color("8")),
		Success: lg.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: lg.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   lg.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Info:    lg.NewStyle().Foreground(lipgloss.Color("14")),
	}
}
