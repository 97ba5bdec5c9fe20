package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// helpContext selects the quick reference shown by the help overlay.
type helpContext int

const (
	helpSteps helpContext = iota
	helpDetail
)

var helpContent = map[helpContext]string{
	helpSteps:  helpStepsText,
	helpDetail: helpDetailText,
}

// renderHelp renders the quick reference modal for ctx.
func renderHelp(ctx helpContext, theme Theme, width int) string {
	r := theme.Renderer

	modalWidth := 60
	if modalWidth > width-4 {
		modalWidth = width - 4
	}
	if modalWidth < 20 {
		modalWidth = 20
	}

	titleStyle := r.NewStyle().Bold(true).Foreground(theme.Primary)
	footerStyle := r.NewStyle().Foreground(theme.Muted).Italic(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render("Quick Reference"))
	b.WriteString("\n")
	b.WriteString(r.NewStyle().Foreground(theme.Muted).Render(strings.Repeat("─", modalWidth-4)))
	b.WriteString("\n\n")
	b.WriteString(helpContent[ctx])
	b.WriteString("\n\n")
	b.WriteString(footerStyle.Render("? or Esc to close"))

	return r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Secondary).
		Padding(1, 2).
		Width(modalWidth).
		Render(b.String())
}

const helpStepsText = `Steps

  j/k       Move up/down
  h/l       Fold or go to parent / unfold or go to child
  p         Jump to parent step
  g/G       Jump to top/bottom
  Ctrl+D/U  Page down/up

  Space/t   Fold or unfold the step
  d         Show or hide label, number and dists
  c         Show only the step's direct children
  E/C       Unfold/fold everything

  a         Add an empty step under the selection
  x         Remove the step and its subtree
  Enter     Step details`

const helpDetailText = `Details

  j/k       Scroll
  Tab       Back to the steps (split view)
  Esc       Back to the steps`
