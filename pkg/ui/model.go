package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/proof_viewer/pkg/proof"
	"github.com/Dicklesworthstone/proof_viewer/pkg/tree"
	"github.com/Dicklesworthstone/proof_viewer/pkg/workset"
)

// SplitViewThreshold is the width above which the detail pane is shown
// beside the step list.
const SplitViewThreshold = 100

type focus int

const (
	focusSteps focus = iota
	focusDetail
)

// ModelOptions configures NewModel.
type ModelOptions struct {
	Theme     Theme
	StatePath string
	Log       *logrus.Entry

	// Session is reused to rebuild the editor when the dump is reloaded.
	Session SessionOptions
}

// Model is the step editor program.
type Model struct {
	session  *Session
	steps    StepTreeModel
	viewport viewport.Model
	renderer *glamour.TermRenderer
	theme    Theme
	opts     ModelOptions
	log      *logrus.Entry

	focused     focus
	isSplitView bool
	showDetails bool
	showHelp    bool
	ready       bool
	width       int
	height      int

	status    string
	statusErr bool
}

// NewModel creates the program model over s.
func NewModel(s *Session, opts ModelOptions) Model {
	if opts.Theme.Renderer == nil {
		opts.Theme = DefaultTheme(nil)
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	steps := NewStepTreeModel(opts.Theme)
	steps.SetLogger(log)
	steps.SetStatePath(opts.StatePath)
	steps.Build(s)

	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)

	return Model{
		session:  s,
		steps:    steps,
		renderer: r,
		theme:    opts.Theme,
		opts:     opts,
		log:      log,
		focused:  focusSteps,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case ReloadedMsg:
		m.reload(msg.Dump)

	case ReloadErrorMsg:
		m.setStatus(msg.Err.Error(), true)

	case tea.KeyMsg:
		if m.showHelp {
			switch msg.String() {
			case "?", "esc", "q":
				m.showHelp = false
			case "ctrl+c":
				return m, tea.Quit
			}
			return m, nil
		}
		switch msg.String() {
		case "?":
			m.showHelp = true
			return m, nil
		case "ctrl+c", "q":
			if m.showDetails && !m.isSplitView {
				m.showDetails = false
				return m, nil
			}
			return m, tea.Quit
		case "esc":
			if m.showDetails && !m.isSplitView {
				m.showDetails = false
				return m, nil
			}
		case "tab":
			if m.isSplitView {
				if m.focused == focusSteps {
					m.focused = focusDetail
				} else {
					m.focused = focusSteps
				}
			}
			return m, nil
		}

		if m.focused == focusDetail || (m.showDetails && !m.isSplitView) {
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		m.handleStepKey(msg.String())
		m.updateViewportContent()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.isSplitView = msg.Width > SplitViewThreshold
		m.ready = true

		available := msg.Height - 1
		if m.isSplitView {
			listWidth := int(float64(msg.Width) * 0.6)
			detailWidth := msg.Width - listWidth - 4
			m.steps.SetSize(listWidth-2, available-2)
			m.viewport = viewport.New(detailWidth, available-2)
		} else {
			m.steps.SetSize(msg.Width, available)
			m.viewport = viewport.New(msg.Width, available)
		}
		m.renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(m.viewport.Width),
		)
		m.updateViewportContent()
	}

	return m, nil
}

func (m *Model) handleStepKey(key string) {
	switch key {
	case "j", "down":
		m.steps.MoveDown()
	case "k", "up":
		m.steps.MoveUp()
	case "l", "right":
		m.steps.ExpandOrMoveToChild()
	case "h", "left":
		m.steps.CollapseOrJumpToParent()
	case " ", "t":
		m.steps.ToggleExpand()
	case "d":
		m.steps.ToggleDetails()
	case "c":
		m.steps.CloseAllChildren()
	case "E":
		m.steps.ExpandAll()
	case "C":
		m.steps.CollapseAll()
	case "p":
		m.steps.JumpToParent()
	case "g", "home":
		m.steps.JumpToTop()
	case "G", "end":
		m.steps.JumpToBottom()
	case "ctrl+d", "pgdown":
		m.steps.PageDown()
	case "ctrl+u", "pgup":
		m.steps.PageUp()
	case "a":
		m.steps.CreateStep()
		m.setStatus("added step", false)
	case "x":
		if m.steps.SelectedNode() != nil {
			m.steps.KillStep()
			m.setStatus("removed step", false)
		}
	case "enter":
		if !m.isSplitView {
			m.showDetails = true
		}
	}
}

// reload rebuilds the editor from a freshly decoded dump, keeping the
// selected step when it still exists.
func (m *Model) reload(d *workset.Dump) {
	path := m.steps.SelectedPath()
	s, err := OpenSession(context.Background(), workset.NewFileSource(d), m.session.Label, m.opts.Session)
	if err != nil {
		m.log.WithError(err).Warn("reload failed")
		m.setStatus(err.Error(), true)
		return
	}
	m.session.Close()
	m.session = s
	m.steps.Build(s)
	m.steps.SelectByPath(path)
	m.setStatus("reloaded", false)
	m.updateViewportContent()
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusErr = isErr
}

func (m *Model) updateViewportContent() {
	n := m.steps.SelectedNode()
	if n == nil {
		m.viewport.SetContent("No step selected")
		return
	}
	md := stepMarkdown(m.session, n)
	if m.renderer == nil {
		m.viewport.SetContent(md)
		return
	}
	rendered, err := m.renderer.Render(md)
	if err != nil {
		m.viewport.SetContent(fmt.Sprintf("Error rendering markdown: %v", err))
		return
	}
	m.viewport.SetContent(rendered)
}

// stepMarkdown describes one step for the detail pane.
func stepMarkdown(s *Session, n *tree.Node) string {
	var sb strings.Builder
	pt, ok := s.Payload(n)
	if !ok {
		sb.WriteString("### New step\n\n_empty_\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("### %s", s.Context.Label(pt.Label)))
	if num := proof.NumberLabel(pt.Number); num != "" {
		sb.WriteString(" · step " + num)
	}
	sb.WriteString("\n\n")
	sb.WriteString("`" + s.Doc.Text(s.Manager.Data1ID(n)) + "`\n\n")

	var hyps []string
	for _, c := range n.Children() {
		if cpt, ok := s.Payload(c); ok && cpt.Number > 0 {
			hyps = append(hyps, proof.NumberLabel(cpt.Number))
		}
	}
	if len(hyps) > 0 {
		sb.WriteString("**Hypotheses:** " + strings.Join(hyps, ", ") + "\n\n")
	}
	if !pt.Essential {
		sb.WriteString("_non-essential_\n\n")
	}
	if len(pt.Dists) > 0 {
		sb.WriteString("**Distinct variables:**\n\n")
		r := s.Painter.Renderer()
		for _, d := range pt.Dists {
			sb.WriteString("- " + r.Dist(d) + "\n")
		}
	}
	return sb.String()
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var body string
	switch {
	case m.showHelp:
		ctx := helpSteps
		if m.focused == focusDetail || m.showDetails {
			ctx = helpDetail
		}
		body = lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center,
			renderHelp(ctx, m.theme, m.width))
	case m.isSplitView:
		listStyle, detailStyle := m.theme.Focused, m.theme.Panel
		if m.focused == focusDetail {
			listStyle, detailStyle = m.theme.Panel, m.theme.Focused
		}
		listView := listStyle.Width(m.steps.width).Height(m.height - 3).Render(m.steps.View())
		detailView := detailStyle.Width(m.viewport.Width + 2).Height(m.height - 3).Render(m.viewport.View())
		body = lipgloss.JoinHorizontal(lipgloss.Top, listView, detailView)
	case m.showDetails:
		body = m.viewport.View()
	default:
		body = m.steps.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderFooter())
}

func (m *Model) renderFooter() string {
	r := m.theme.Renderer
	title := r.NewStyle().Foreground(m.theme.Primary).Bold(true).Padding(0, 1).
		Render(m.session.Label)
	count := r.NewStyle().Foreground(m.theme.Secondary).Padding(0, 1).
		Render(fmt.Sprintf("%d steps", m.steps.NodeCount()))

	var keys string
	switch {
	case m.showDetails && !m.isSplitView:
		keys = "esc: back • j/k: scroll • ?: help • q: quit"
	case m.isSplitView:
		keys = "space/t: fold • d: details • c: close children • a/x: add/kill • tab: focus • ?: help • q: quit"
	default:
		keys = "space/t: fold • d: details • a/x: add/kill • enter: view • ?: help • q: quit"
	}
	keysSection := m.theme.Footer.Padding(0, 1).Render(keys)

	status := ""
	if m.status != "" {
		st := r.NewStyle().Foreground(m.theme.Highlight)
		if m.statusErr {
			st = r.NewStyle().Foreground(m.theme.Error).Bold(true)
		}
		status = st.Padding(0, 1).Render(m.status)
	}

	used := lipgloss.Width(title) + lipgloss.Width(status) + lipgloss.Width(count) + lipgloss.Width(keysSection)
	remaining := m.width - used
	if remaining < 0 {
		remaining = 0
	}
	filler := r.NewStyle().Width(remaining).Render("")
	return lipgloss.JoinHorizontal(lipgloss.Bottom, title, status, filler, count, keysSection)
}

// Steps exposes the row view for tests and callers driving the model.
func (m Model) Steps() StepTreeModel {
	return m.steps
}

// Session returns the session currently shown.
func (m Model) Session() *Session {
	return m.session
}

// Status returns the footer status line and whether it reports an error.
func (m Model) Status() (string, bool) {
	return m.status, m.statusErr
}

// Run starts the editor on s and, when dumpPath is set, reloads it whenever
// the dump changes.
func Run(s *Session, opts ModelOptions, dumpPath string) error {
	p := tea.NewProgram(NewModel(s, opts), tea.WithAltScreen())

	w, err := NewWorker(WorkerConfig{DumpPath: dumpPath, Sender: p, Log: opts.Log})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok && fm.session != s {
		fm.session.Close()
	}
	return nil
}
