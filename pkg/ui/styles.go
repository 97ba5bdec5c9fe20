package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme holds the colours and styles shared by the editor views.
type Theme struct {
	Renderer *lipgloss.Renderer

	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Muted     lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor

	Base     lipgloss.Style
	Selected lipgloss.Style
	Panel    lipgloss.Style
	Focused  lipgloss.Style
	Footer   lipgloss.Style
}

// DefaultTheme builds the standard theme on r. Tests pass
// lipgloss.NewRenderer(nil) to get uncoloured output.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	t := Theme{
		Renderer:  r,
		Primary:   lipgloss.AdaptiveColor{Light: "#7D56F4", Dark: "#BD93F9"},
		Secondary: lipgloss.AdaptiveColor{Light: "#B58900", Dark: "#F1FA8C"},
		Highlight: lipgloss.AdaptiveColor{Light: "#0B7285", Dark: "#8BE9FD"},
		Muted:     lipgloss.AdaptiveColor{Light: "#868E96", Dark: "#6272A4"},
		Error:     lipgloss.AdaptiveColor{Light: "#C92A2A", Dark: "#FF5555"},
	}
	t.Base = r.NewStyle()
	t.Selected = r.NewStyle().
		Background(lipgloss.AdaptiveColor{Light: "#E9ECEF", Dark: "#44475A"}).
		Bold(true)
	t.Panel = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Muted)
	t.Focused = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary)
	t.Footer = r.NewStyle().Foreground(t.Muted)
	return t
}

// NumberStyle colours a step number with the hex colour computed for it.
func (t Theme) NumberStyle(hex string) lipgloss.Style {
	return t.Renderer.NewStyle().Foreground(lipgloss.Color(hex)).Bold(true)
}
