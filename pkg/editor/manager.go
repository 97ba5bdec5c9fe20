// Package editor keeps a collapsible, nested presentation of a tree.Tree in
// sync with the tree's shape. Every node that is reachable through visible
// ancestors owns a step container on the Surface; a NodePainter fills in each
// container's content exactly once per visible transition.
package editor

import (
	"github.com/Dicklesworthstone/proof_viewer/pkg/tree"
)

// Surface is the presentation layer the manager writes to. Fragments are
// HTML; ids follow the StepID/Suffix* scheme.
type Surface interface {
	SetInnerHTML(id, fragment string) error
	Prepend(id, fragment string) error
	InsertAfter(id, fragment string) error
	Remove(id string)
	SetHidden(id string, hidden bool)
	SwapClass(id, from, to string)
	OnClick(id string, fn func())
}

// NodePainter renders a node's own content into its already created step
// container. It receives a back-reference to the manager at construction
// time and may use it to query state while wiring controls.
type NodePainter interface {
	PaintNode(n *tree.Node)
	SetEditorManager(m *Manager)
}

// NodeReleaser is implemented by painters that keep per-node state of their
// own. DestroyingNode hands every destroyed node to ReleaseNode.
type NodeReleaser interface {
	ReleaseNode(n *tree.Node)
}

// StepState is the per-node manager object.
type StepState struct {
	Visible      bool
	ChildrenOpen bool
	Data2Open    bool
}

// Manager is the tree.Manager that maintains visibility and disclosure state
// and drives the Surface.
//
// Visibility is prefix-closed: a node is visible only if its parent is. The
// root is visible from creation; a subtree becomes visible when it is spliced
// under a visible parent and invisible when it is orphaned.
type Manager struct {
	tree.Base[*StepState]

	parentID string
	surface  Surface
	painter  NodePainter
}

// NewManager creates a manager that renders into the surface element
// parentID and registers itself on painter.
func NewManager(parentID string, surface Surface, painter NodePainter) *Manager {
	m := &Manager{
		parentID: parentID,
		surface:  surface,
		painter:  painter,
	}
	painter.SetEditorManager(m)
	return m
}

// Surface returns the presentation surface.
func (m *Manager) Surface() Surface {
	return m.surface
}

// ParentID returns the id of the surface element holding the root shell.
func (m *Manager) ParentID() string {
	return m.parentID
}

// CreatingNode allocates the node's state. The root becomes visible at once
// and gets its shell; other nodes start invisible.
func (m *Manager) CreatingNode(n *tree.Node) tree.Task {
	obj := &StepState{}
	m.SetManagerObject(n, obj)
	if n.IsRoot() {
		obj.Visible = true
		err := m.surface.SetInnerHTML(m.parentID, execute(stepRootTmpl, n))
		tree.Assert(err == nil, "install root shell for tree %q: %v", n.Tree().ID(), err)
	}
	return nil
}

// DestroyingNode frees the node's state. Destroying the root clears the
// parent container. Any other node must already be invisible.
func (m *Manager) DestroyingNode(n *tree.Node) tree.Task {
	obj := m.ManagerObject(n)
	if n.IsRoot() {
		tree.Assert(obj.Visible, "root of tree %q is not visible", n.Tree().ID())
		obj.Visible = false
		err := m.surface.SetInnerHTML(m.parentID, "")
		tree.Assert(err == nil, "clear %s: %v", m.parentID, err)
	} else {
		tree.Assert(!obj.Visible, "destroying visible node %d", n.ID())
	}
	m.DeleteManagerObject(n)
	if r, ok := m.painter.(NodeReleaser); ok {
		r.ReleaseNode(n)
	}
	return nil
}

// AfterReparenting shows child's subtree if it landed under a visible parent.
func (m *Manager) AfterReparenting(parent, child *tree.Node, idx int) {
	parentObj := m.ManagerObject(parent)
	childObj := m.ManagerObject(child)
	tree.Assert(!childObj.Visible, "reparented node %d is already visible", child.ID())
	if parentObj.Visible {
		m.makeSubtreeVisible(parent, child, idx)
	}
}

// BeforeOrphaning hides child's subtree and removes its container.
func (m *Manager) BeforeOrphaning(parent, child *tree.Node, idx int) {
	parentObj := m.ManagerObject(parent)
	childObj := m.ManagerObject(child)
	tree.Assert(parentObj.Visible == childObj.Visible,
		"visibility mismatch orphaning node %d (visible=%t) from %d (visible=%t)",
		child.ID(), childObj.Visible, parent.ID(), parentObj.Visible)
	if childObj.Visible {
		m.makeSubtreeHidden(child)
	}
	m.surface.Remove(FullID(child))
}

// State returns a copy of n's state.
func (m *Manager) State(n *tree.Node) StepState {
	return *m.ManagerObject(n)
}

// Visible reports whether n currently has a step container.
func (m *Manager) Visible(n *tree.Node) bool {
	return m.ManagerObject(n).Visible
}

// Data1ID returns the id of n's primary content element.
func (m *Manager) Data1ID(n *tree.Node) string {
	return FullID(n) + SuffixData1
}

// Data2ID returns the id of n's secondary content element.
func (m *Manager) Data2ID(n *tree.Node) string {
	return FullID(n) + SuffixData2
}

// ToggleChildren flips n's children section.
func (m *Manager) ToggleChildren(n *tree.Node) {
	obj := m.ManagerObject(n)
	full := FullID(n)
	if obj.ChildrenOpen {
		m.surface.SwapClass(full+SuffixToggleChildren, ClassOpen, ClassClosed)
		m.surface.SetHidden(full+SuffixChildren, true)
		obj.ChildrenOpen = false
	} else {
		m.surface.SwapClass(full+SuffixToggleChildren, ClassClosed, ClassOpen)
		m.surface.SetHidden(full+SuffixChildren, false)
		obj.ChildrenOpen = true
	}
}

// OpenChildren opens n's children section if it is closed.
func (m *Manager) OpenChildren(n *tree.Node) {
	if !m.ManagerObject(n).ChildrenOpen {
		m.ToggleChildren(n)
	}
}

// CloseChildren closes n's children section if it is open.
func (m *Manager) CloseChildren(n *tree.Node) {
	if m.ManagerObject(n).ChildrenOpen {
		m.ToggleChildren(n)
	}
}

// ToggleData2 flips n's secondary data section.
func (m *Manager) ToggleData2(n *tree.Node) {
	obj := m.ManagerObject(n)
	full := FullID(n)
	if obj.Data2Open {
		m.surface.SwapClass(full+SuffixToggleData2, ClassOpen, ClassClosed)
		m.surface.SetHidden(full+SuffixData2, true)
		obj.Data2Open = false
	} else {
		m.surface.SwapClass(full+SuffixToggleData2, ClassClosed, ClassOpen)
		m.surface.SetHidden(full+SuffixData2, false)
		obj.Data2Open = true
	}
}

// OpenData2 opens n's secondary data section if it is closed.
func (m *Manager) OpenData2(n *tree.Node) {
	if !m.ManagerObject(n).Data2Open {
		m.ToggleData2(n)
	}
}

// CloseData2 closes n's secondary data section if it is open.
func (m *Manager) CloseData2(n *tree.Node) {
	if m.ManagerObject(n).Data2Open {
		m.ToggleData2(n)
	}
}

// CloseAllChildren opens n and closes every direct child, leaving one level
// of the subtree on display.
func (m *Manager) CloseAllChildren(n *tree.Node) {
	m.OpenChildren(n)
	for _, c := range n.Children() {
		m.CloseChildren(c)
	}
}

func (m *Manager) makeSubtreeVisible(parent, child *tree.Node, idx int) {
	parentObj := m.ManagerObject(parent)
	childObj := m.ManagerObject(child)
	tree.Assert(!childObj.Visible, "node %d is already visible", child.ID())
	tree.Assert(parentObj.Visible, "parent %d of node %d is not visible", parent.ID(), child.ID())

	childObj.Visible = true

	fragment := execute(stepTmpl, child)
	var err error
	if idx == 0 {
		err = m.surface.Prepend(FullID(parent)+SuffixChildren, fragment)
	} else {
		err = m.surface.InsertAfter(FullID(parent.Child(idx-1)), fragment)
	}
	tree.Assert(err == nil, "insert container for node %d at %d: %v", child.ID(), idx, err)

	full := FullID(child)
	m.OpenChildren(child)
	m.surface.OnClick(full+SuffixToggleChildren, func() { m.ToggleChildren(child) })
	// Flip data2 open then closed so the button class and section agree.
	m.OpenData2(child)
	m.CloseData2(child)
	m.surface.OnClick(full+SuffixToggleData2, func() { m.ToggleData2(child) })
	m.surface.OnClick(full+SuffixCloseAllChildren, func() { m.CloseAllChildren(child) })

	m.painter.PaintNode(child)

	for i, grandchild := range child.Children() {
		m.makeSubtreeVisible(child, grandchild, i)
	}
}

func (m *Manager) makeSubtreeHidden(n *tree.Node) {
	obj := m.ManagerObject(n)
	tree.Assert(obj.Visible, "hiding invisible node %d", n.ID())
	obj.Visible = false
	for _, c := range n.Children() {
		m.makeSubtreeHidden(c)
	}
}
