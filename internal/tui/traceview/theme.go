// Package traceview is the terminal viewer behind `saucer trace view`.
package traceview

import "github.com/charmbracelet/lipgloss"

// Theme keeps every colour in one place.
type Theme struct {
	Effect      lipgloss.Style
	Message     lipgloss.Style
	SelfMessage lipgloss.Style

	Border lipgloss.Style
	Title  lipgloss.Style
	Dim    lipgloss.Style
	Error  lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		Effect:      lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF")),
		Message:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		SelfMessage: lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")),
		Error: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),
	}
}

func (t Theme) kind(kind string) lipgloss.Style {
	switch kind {
	case "effect":
		return t.Effect
	case "message":
		return t.Message
	case "self_message":
		return t.SelfMessage
	}
	return t.Dim
}
