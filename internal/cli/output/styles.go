package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header    lipgloss.Style
	Subheader lipgloss.Style
	Bold      lipgloss.Style
	Key       lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Info      lipgloss.Style
	Language  lipgloss.Style
}

// NewStyles builds styles bound to a lipgloss renderer, so color output
// follows the renderer's terminal profile.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Subheader: r.NewStyle().Bold(true),
		Bold:      r.NewStyle().Bold(true),
		Key:       r.NewStyle().Foreground(lipgloss.Color("8")),
		Muted:     r.NewStyle().Foreground(lipgloss.Color("8")),
		Success:   r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:   r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:     r.NewStyle().Foreground(lipgloss.Color("9")),
		Info:      r.NewStyle().Foreground(lipgloss.Color("14")),
		Language:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
	}
}
