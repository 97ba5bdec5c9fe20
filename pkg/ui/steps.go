// steps.go - navigable row view over the live step editor
package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/proof_viewer/pkg/editor"
	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
	"github.com/Dicklesworthstone/proof_viewer/pkg/proof"
	"github.com/Dicklesworthstone/proof_viewer/pkg/tree"
)

// StepTreeModel lists the steps the editor currently shows. A step's
// children are listed only while its children section is open, so the row
// list always mirrors the disclosure state held by the editor manager.
// Every toggle goes through the surface buttons the editor wired.
type StepTreeModel struct {
	session        *Session
	flatList       []*tree.Node // visible rows in display order
	cursor         int
	viewportOffset int
	theme          Theme
	width          int
	height         int

	statePath string
	log       *logrus.Entry
}

// NewStepTreeModel creates an empty row view.
func NewStepTreeModel(theme Theme) StepTreeModel {
	return StepTreeModel{
		theme: theme,
		log:   logrus.NewEntry(logrus.StandardLogger()),
	}
}

// SetStatePath sets where disclosure state is persisted. Empty disables
// persistence.
func (t *StepTreeModel) SetStatePath(path string) {
	t.statePath = path
}

// SetLogger routes warnings to log.
func (t *StepTreeModel) SetLogger(log *logrus.Entry) {
	if log != nil {
		t.log = log
	}
}

// SetSize updates the available dimensions.
func (t *StepTreeModel) SetSize(width, height int) {
	t.width = width
	t.height = height
	t.ensureCursorVisible()
}

// Build attaches the view to s, restores persisted disclosure state and
// resets the cursor.
func (t *StepTreeModel) Build(s *Session) {
	t.session = s
	t.cursor = 0
	t.viewportOffset = 0
	t.loadState()
	t.rebuildFlatList()
}

// Session returns the attached session.
func (t *StepTreeModel) Session() *Session {
	return t.session
}

// IsBuilt reports whether a session is attached.
func (t *StepTreeModel) IsBuilt() bool {
	return t.session != nil
}

// NodeCount returns the number of visible rows.
func (t *StepTreeModel) NodeCount() int {
	return len(t.flatList)
}

// Cursor returns the selected row index.
func (t *StepTreeModel) Cursor() int {
	return t.cursor
}

// SelectedNode returns the selected step, or nil.
func (t *StepTreeModel) SelectedNode() *tree.Node {
	if t.cursor >= 0 && t.cursor < len(t.flatList) {
		return t.flatList[t.cursor]
	}
	return nil
}

// SelectedStep returns the proof step shown by the selected row.
func (t *StepTreeModel) SelectedStep() (*model.ProofTree, bool) {
	n := t.SelectedNode()
	if n == nil {
		return nil, false
	}
	return t.session.Payload(n)
}

// SelectedPath returns the StepPath of the selected row, or "".
func (t *StepTreeModel) SelectedPath() string {
	if n := t.SelectedNode(); t.isStep(n) {
		return StepPath(n)
	}
	return ""
}

// SelectNode moves the cursor to n if it is listed.
func (t *StepTreeModel) SelectNode(n *tree.Node) bool {
	for i, cur := range t.flatList {
		if cur == n {
			t.cursor = i
			t.ensureCursorVisible()
			return true
		}
	}
	return false
}

// SelectByPath moves the cursor to the listed step at path. Used to keep
// the selection across reloads.
func (t *StepTreeModel) SelectByPath(path string) bool {
	if path == "" {
		return false
	}
	for i, n := range t.flatList {
		if StepPath(n) == path {
			t.cursor = i
			t.ensureCursorVisible()
			return true
		}
	}
	return false
}

// StepPath identifies a step by the child indexes leading to it from the
// editor root, e.g. "0.2.1". Unlike a step's number it is unique within
// an assertion and stable across reloads of the same proof.
func StepPath(n *tree.Node) string {
	var idx []string
	for cur := n; cur != nil && !cur.IsRoot(); cur = cur.Parent() {
		idx = append(idx, strconv.Itoa(cur.Index()))
	}
	for i, j := 0, len(idx)-1; i < j; i, j = i+1, j-1 {
		idx[i], idx[j] = idx[j], idx[i]
	}
	return strings.Join(idx, ".")
}

func (t *StepTreeModel) MoveDown() {
	if t.cursor < len(t.flatList)-1 {
		t.cursor++
	}
	t.ensureCursorVisible()
}

// MoveUp moves the cursor up one row.
func (t *StepTreeModel) MoveUp() {
	if t.cursor > 0 {
		t.cursor--
	}
	t.ensureCursorVisible()
}

// JumpToTop moves the cursor to the first row.
func (t *StepTreeModel) JumpToTop() {
	t.cursor = 0
	t.ensureCursorVisible()
}

// JumpToBottom moves the cursor to the last row.
func (t *StepTreeModel) JumpToBottom() {
	if len(t.flatList) > 0 {
		t.cursor = len(t.flatList) - 1
	}
	t.ensureCursorVisible()
}

// PageDown moves the cursor down by half a page.
func (t *StepTreeModel) PageDown() {
	t.cursor += t.pageSize()
	if t.cursor >= len(t.flatList) {
		t.cursor = len(t.flatList) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.ensureCursorVisible()
}

// PageUp moves the cursor up by half a page.
func (t *StepTreeModel) PageUp() {
	t.cursor -= t.pageSize()
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.ensureCursorVisible()
}

// JumpToParent moves the cursor to the selected step's parent step.
func (t *StepTreeModel) JumpToParent() {
	n := t.SelectedNode()
	if n == nil || !t.isStep(n.Parent()) {
		return
	}
	t.SelectNode(n.Parent())
}

// ToggleExpand opens or closes the selected step's children.
func (t *StepTreeModel) ToggleExpand() {
	n := t.SelectedNode()
	if n == nil || n.ChildCount() == 0 {
		return
	}
	t.click(n, editor.SuffixToggleChildren)
	t.changed()
}

// ToggleDetails opens or closes the selected step's details section.
func (t *StepTreeModel) ToggleDetails() {
	n := t.SelectedNode()
	if n == nil {
		return
	}
	t.click(n, editor.SuffixToggleData2)
	t.saveState()
}

// CloseAllChildren opens the selected step and closes each of its children.
func (t *StepTreeModel) CloseAllChildren() {
	n := t.SelectedNode()
	if n == nil {
		return
	}
	t.click(n, editor.SuffixCloseAllChildren)
	t.changed()
}

// ExpandAll opens the children of every step.
func (t *StepTreeModel) ExpandAll() {
	t.eachStep(func(n *tree.Node) { t.session.Manager.OpenChildren(n) })
	t.changed()
}

// CollapseAll closes the children of every step.
func (t *StepTreeModel) CollapseAll() {
	t.eachStep(func(n *tree.Node) { t.session.Manager.CloseChildren(n) })
	t.changed()
}

// ExpandOrMoveToChild opens a closed step, or moves to the first child of
// an open one. Leaves do nothing.
func (t *StepTreeModel) ExpandOrMoveToChild() {
	n := t.SelectedNode()
	if n == nil || n.ChildCount() == 0 {
		return
	}
	if !t.session.Manager.State(n).ChildrenOpen {
		t.ToggleExpand()
		return
	}
	t.SelectNode(n.Child(0))
}

// CollapseOrJumpToParent closes an open step, otherwise jumps to the
// parent step.
func (t *StepTreeModel) CollapseOrJumpToParent() {
	n := t.SelectedNode()
	if n == nil {
		return
	}
	if n.ChildCount() > 0 && t.session.Manager.State(n).ChildrenOpen {
		t.ToggleExpand()
		return
	}
	t.JumpToParent()
}

// CreateStep appends an empty step under the selected one and selects it.
// With nothing listed the step goes directly under the editor root.
func (t *StepTreeModel) CreateStep() *tree.Node {
	if t.session == nil {
		return nil
	}
	n := t.SelectedNode()
	var child *tree.Node
	if n == nil {
		child = t.session.Painter.CreateChild(t.session.Tree.Root())
	} else {
		t.click(n, editor.SuffixCreate)
		child = n.Child(n.ChildCount() - 1)
		t.session.Manager.OpenChildren(n)
	}
	t.rebuildFlatList()
	t.SelectNode(child)
	return child
}

// KillStep destroys the selected step and its subtree.
func (t *StepTreeModel) KillStep() {
	n := t.SelectedNode()
	if n == nil {
		return
	}
	t.click(n, editor.SuffixKill)
	t.changed()
}

// View renders the visible rows.
func (t *StepTreeModel) View() string {
	if t.session == nil || len(t.flatList) == 0 {
		return t.renderEmptyState()
	}

	var sb strings.Builder
	start, end := t.visibleRange()
	for i := start; i < end; i++ {
		line := t.renderNode(t.flatList[i])
		if i == t.cursor {
			line = t.theme.Selected.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (t *StepTreeModel) renderEmptyState() string {
	r := t.theme.Renderer
	title := r.NewStyle().Foreground(t.theme.Primary).Bold(true)
	muted := r.NewStyle().Foreground(t.theme.Muted)

	var sb strings.Builder
	sb.WriteString(title.Render("Proof steps"))
	sb.WriteString("\n\n")
	sb.WriteString(muted.Render("No steps to display."))
	sb.WriteString("\n")
	sb.WriteString(muted.Render("Press a to add a step."))
	return sb.String()
}

func (t *StepTreeModel) renderNode(n *tree.Node) string {
	r := t.theme.Renderer
	s := t.session
	var sb strings.Builder

	prefix := t.buildTreePrefix(n)
	sb.WriteString(prefix)

	sb.WriteString(r.NewStyle().Foreground(t.theme.Secondary).Render(t.expandIndicator(n)))
	sb.WriteString(" ")

	if pt, ok := s.Payload(n); ok {
		if num := proof.NumberLabel(pt.Number); num != "" {
			sb.WriteString(t.theme.NumberStyle(proof.NumberColor(pt.Number, s.Context.MaxNumber)).Render(num))
			sb.WriteString(" ")
		}
		label := s.Context.Label(pt.Label)
		if label == "" {
			label = "?" + strconv.Itoa(pt.Label)
		}
		sb.WriteString(r.NewStyle().Foreground(t.theme.Highlight).Render(label))
		sb.WriteString(" ")
	}

	text := s.Doc.Text(s.Manager.Data1ID(n))
	if s.Manager.State(n).Data2Open {
		text += "  [" + s.Doc.Text(s.Manager.Data2ID(n)) + "]"
	}
	maxLen := t.width - lipgloss.Width(sb.String())
	if maxLen < 20 {
		maxLen = 20
	}
	sb.WriteString(truncate(text, maxLen))
	return sb.String()
}

func (t *StepTreeModel) buildTreePrefix(n *tree.Node) string {
	if !t.isStep(n.Parent()) {
		return ""
	}
	var parts []string
	for _, a := range t.ancestors(n) {
		if hasSiblingsBelow(a) {
			parts = append(parts, "│   ")
		} else {
			parts = append(parts, "    ")
		}
	}
	if hasSiblingsBelow(n) {
		parts = append(parts, "├── ")
	} else {
		parts = append(parts, "└── ")
	}
	return t.theme.Renderer.NewStyle().Foreground(t.theme.Muted).Render(strings.Join(parts, ""))
}

// ancestors returns n's ancestor steps below the top level, outermost first.
func (t *StepTreeModel) ancestors(n *tree.Node) []*tree.Node {
	var out []*tree.Node
	for cur := n.Parent(); t.isStep(cur) && t.isStep(cur.Parent()); cur = cur.Parent() {
		out = append([]*tree.Node{cur}, out...)
	}
	return out
}

func (t *StepTreeModel) expandIndicator(n *tree.Node) string {
	if n.ChildCount() == 0 {
		return "•"
	}
	if t.session.Manager.State(n).ChildrenOpen {
		return "▾"
	}
	return "▸"
}

func hasSiblingsBelow(n *tree.Node) bool {
	p := n.Parent()
	return p != nil && n.Index() < p.ChildCount()-1
}

func truncate(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	return runewidth.Truncate(s, maxLen, "…")
}

// isStep reports whether n is a step row rather than the editor root.
func (t *StepTreeModel) isStep(n *tree.Node) bool {
	return n != nil && !n.IsRoot()
}

func (t *StepTreeModel) click(n *tree.Node, suffix string) {
	if !t.session.Doc.Click(editor.FullID(n) + suffix) {
		t.log.WithField("element", editor.FullID(n)+suffix).Warn("button not wired")
	}
}

func (t *StepTreeModel) changed() {
	t.rebuildFlatList()
	t.saveState()
}

func (t *StepTreeModel) eachStep(fn func(*tree.Node)) {
	if t.session == nil {
		return
	}
	for _, top := range t.session.Tree.Root().Children() {
		top.Walk(func(n *tree.Node) bool {
			fn(n)
			return true
		})
	}
}

func (t *StepTreeModel) pageSize() int {
	if size := t.height / 2; size >= 1 {
		return size
	}
	return 5
}

// visibleRange returns the [start, end) rows that fit the viewport.
func (t *StepTreeModel) visibleRange() (start, end int) {
	if len(t.flatList) == 0 {
		return 0, 0
	}
	visible := t.height
	if visible <= 0 {
		visible = 20
	}
	start = t.viewportOffset
	end = start + visible
	if end > len(t.flatList) {
		end = len(t.flatList)
		start = end - visible
		if start < 0 {
			start = 0
		}
	}
	return start, end
}

func (t *StepTreeModel) ensureCursorVisible() {
	visible := t.height
	if visible <= 0 {
		visible = 20
	}
	if t.cursor < t.viewportOffset {
		t.viewportOffset = t.cursor
	}
	if t.cursor >= t.viewportOffset+visible {
		t.viewportOffset = t.cursor - visible + 1
	}
	if t.viewportOffset < 0 {
		t.viewportOffset = 0
	}
}

func (t *StepTreeModel) rebuildFlatList() {
	t.flatList = t.flatList[:0]
	if t.session != nil && !t.session.Tree.Closed() {
		for _, top := range t.session.Tree.Root().Children() {
			t.appendVisible(top)
		}
	}
	if t.cursor >= len(t.flatList) {
		t.cursor = len(t.flatList) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
	t.ensureCursorVisible()
}

func (t *StepTreeModel) appendVisible(n *tree.Node) {
	t.flatList = append(t.flatList, n)
	if t.session.Manager.State(n).ChildrenOpen {
		for _, c := range n.Children() {
			t.appendVisible(c)
		}
	}
}

// saveState records this assertion's non-default disclosure state. Errors
// are logged; they never interrupt editing.
func (t *StepTreeModel) saveState() {
	if t.statePath == "" || t.session == nil {
		return
	}
	steps := make(map[string]StepDisclosure)
	t.eachStep(func(n *tree.Node) {
		st := t.session.Manager.State(n)
		d := StepDisclosure{ChildrenClosed: !st.ChildrenOpen, DetailsOpen: st.Data2Open}
		if d != (StepDisclosure{}) {
			steps[StepPath(n)] = d
		}
	})

	state := ReadEditorState(t.statePath, t.log)
	state.SetAssertion(t.session.Label, steps)
	if err := WriteEditorState(t.statePath, state); err != nil {
		t.log.WithError(err).WithField("path", t.statePath).Warn("failed to write editor state")
	}
}

// loadState applies stored disclosure state to the session's steps. Steps
// that no longer exist are ignored.
func (t *StepTreeModel) loadState() {
	if t.statePath == "" || t.session == nil {
		return
	}
	state := ReadEditorState(t.statePath, t.log)
	m := t.session.Manager
	t.eachStep(func(n *tree.Node) {
		d, ok := state.Step(t.session.Label, StepPath(n))
		if !ok {
			return
		}
		if d.ChildrenClosed {
			m.CloseChildren(n)
		}
		if d.DetailsOpen {
			m.OpenData2(n)
		}
	})
}
