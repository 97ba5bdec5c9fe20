package tree

import (
	"context"
	"fmt"
)

// Tree owns a root node, allocates node IDs and forwards every structural
// change to its Manager. It assumes a single writer: mutations and their
// notifications run to completion before the next mutation starts.
type Tree struct {
	id      string
	root    *Node
	nextID  NodeID
	nodes   map[NodeID]*Node
	manager Manager
	pending []Task
	closed  bool
}

// New creates a tree, attaches m to it and creates the root node.
func New(id string, m Manager) *Tree {
	Assert(m != nil, "tree %q needs a manager", id)
	t := &Tree{
		id:      id,
		nodes:   make(map[NodeID]*Node),
		manager: m,
	}
	m.Attach(t)
	root := t.alloc(nil)
	t.root = root
	t.queue(m.CreatingNode(root))
	return t
}

// ID returns the tree identifier surfaced to the presentation layer.
func (t *Tree) ID() string {
	return t.id
}

// Root returns the root node.
func (t *Tree) Root() *Node {
	return t.root
}

// Manager returns the attached manager.
func (t *Tree) Manager() Manager {
	return t.manager
}

// Node looks up a live node by ID.
func (t *Tree) Node(id NodeID) (*Node, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Len returns the number of live nodes, detached subtrees included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Closed reports whether Close has run.
func (t *Tree) Closed() bool {
	return t.closed
}

// CreateChild creates a new node and splices it into parent at idx.
// The manager sees CreatingNode (parent link already set) and then
// AfterReparenting.
func (t *Tree) CreateChild(parent *Node, idx int) *Node {
	t.checkOpen()
	t.checkLive(parent)
	Assert(idx >= 0 && idx <= len(parent.children), "insert index %d out of range [0,%d] under node %d", idx, len(parent.children), parent.id)

	child := t.alloc(parent)
	t.queue(t.manager.CreatingNode(child))
	parent.children = splice(parent.children, idx, child)
	t.manager.AfterReparenting(parent, child, idx)
	return child
}

// AppendChild is CreateChild at the end of parent's child list.
func (t *Tree) AppendChild(parent *Node) *Node {
	return t.CreateChild(parent, len(parent.children))
}

// NewDetached creates a parentless node that is not reachable from the root.
// It is used to assemble a subtree before inserting it with Reparent.
func (t *Tree) NewDetached() *Node {
	t.checkOpen()
	n := t.alloc(nil)
	t.queue(t.manager.CreatingNode(n))
	return n
}

// Reparent splices the detached subtree rooted at child into parent at idx.
func (t *Tree) Reparent(parent, child *Node, idx int) {
	t.checkOpen()
	t.checkLive(parent)
	t.checkLive(child)
	Assert(child.parent == nil && !child.IsRoot(), "node %d is not a detached subtree root", child.id)
	Assert(!child.isAncestorOf(parent), "node %d cannot become its own ancestor", child.id)
	Assert(idx >= 0 && idx <= len(parent.children), "insert index %d out of range [0,%d] under node %d", idx, len(parent.children), parent.id)

	child.parent = parent
	parent.children = splice(parent.children, idx, child)
	t.manager.AfterReparenting(parent, child, idx)
}

// Orphan detaches child (and its subtree) from its parent without destroying
// it. The subtree can later be passed to Reparent or Destroy.
func (t *Tree) Orphan(child *Node) {
	t.checkOpen()
	t.checkLive(child)
	Assert(!child.IsRoot(), "cannot orphan the root of tree %q", t.id)
	parent := child.parent
	Assert(parent != nil, "node %d has no parent", child.id)

	idx := child.Index()
	t.manager.BeforeOrphaning(parent, child, idx)
	parent.children = unsplice(parent.children, idx)
	child.parent = nil
}

// Move orphans child and reparents it under parent at idx, where idx is a
// position in parent's child list once child has left it. A rejected move
// panics before anything is detached.
func (t *Tree) Move(child, parent *Node, idx int) {
	t.checkOpen()
	t.checkLive(child)
	t.checkLive(parent)
	Assert(!child.IsRoot() && child.parent != nil, "node %d is not attached", child.id)
	Assert(!child.isAncestorOf(parent), "node %d cannot become its own ancestor", child.id)
	limit := len(parent.children)
	if child.parent == parent {
		limit--
	}
	Assert(idx >= 0 && idx <= limit, "insert index %d out of range [0,%d] under node %d", idx, limit, parent.id)

	t.Orphan(child)
	t.Reparent(parent, child, idx)
}

// Destroy removes the subtree rooted at n as a unit. An attached subtree is
// orphaned first (one BeforeOrphaning for n). DestroyingNode then runs for
// every node of the subtree in post-order, children before their parent.
func (t *Tree) Destroy(n *Node) {
	t.checkOpen()
	t.checkLive(n)
	Assert(!n.IsRoot(), "use Close to destroy the root of tree %q", t.id)
	if n.parent != nil {
		t.Orphan(n)
	}
	t.destroySubtree(n)
}

// Close destroys every live node: detached subtrees first, then each child
// subtree of the root through Destroy (so it is orphaned before teardown),
// and the root itself last.
func (t *Tree) Close() {
	t.checkOpen()
	for _, n := range t.detachedRoots() {
		t.destroySubtree(n)
	}
	for len(t.root.children) > 0 {
		t.Destroy(t.root.children[0])
	}
	t.destroySubtree(t.root)
	t.closed = true
}

// Pending returns the number of queued hook tasks.
func (t *Tree) Pending() int {
	return len(t.pending)
}

// Settle runs queued hook tasks in order. It stops at the first failing task
// and returns its error; tasks after it stay queued.
func (t *Tree) Settle(ctx context.Context) error {
	for len(t.pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		task := t.pending[0]
		t.pending = t.pending[1:]
		if err := task(ctx); err != nil {
			return fmt.Errorf("settle tree %q: %w", t.id, err)
		}
	}
	return nil
}

func (t *Tree) destroySubtree(n *Node) {
	order := n.PostOrder()
	for _, cur := range order {
		t.queue(t.manager.DestroyingNode(cur))
		cur.alive = false
		delete(t.nodes, cur.id)
	}
	// Unlink after all notifications so hooks saw an intact subtree.
	for _, cur := range order {
		cur.children = nil
		cur.parent = nil
	}
}

func (t *Tree) detachedRoots() []*Node {
	var out []*Node
	for id := NodeID(0); id < t.nextID; id++ {
		n, ok := t.nodes[id]
		if ok && n.parent == nil && n != t.root {
			out = append(out, n)
		}
	}
	return out
}

func (t *Tree) alloc(parent *Node) *Node {
	n := &Node{
		id:     t.nextID,
		tree:   t,
		parent: parent,
		alive:  true,
	}
	t.nextID++
	t.nodes[n.id] = n
	return n
}

func (t *Tree) queue(task Task) {
	if task != nil {
		t.pending = append(t.pending, task)
	}
}

func (t *Tree) checkOpen() {
	Assert(!t.closed, "tree %q is closed", t.id)
}

func (t *Tree) checkLive(n *Node) {
	Assert(n != nil, "nil node")
	Assert(n.tree == t, "node %d belongs to another tree", n.id)
	Assert(n.alive, "node %d has been destroyed", n.id)
}

func splice(nodes []*Node, idx int, n *Node) []*Node {
	nodes = append(nodes, nil)
	copy(nodes[idx+1:], nodes[idx:])
	nodes[idx] = n
	return nodes
}

func unsplice(nodes []*Node, idx int) []*Node {
	copy(nodes[idx:], nodes[idx+1:])
	nodes[len(nodes)-1] = nil
	return nodes[:len(nodes)-1]
}
