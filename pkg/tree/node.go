// Package tree implements the live, editable step tree and the notification
// protocol that keeps an attached Manager in sync with every structural change.
//
// A Tree owns its nodes in an arena keyed by NodeID. Nodes carry structure only
// (parent, ordered children, owning tree); anything a presentation layer needs to
// remember about a node lives in the Manager's side-table, never on the node.
package tree

// NodeID identifies a node within its Tree. IDs are allocated in strictly
// increasing order and are never reused for the lifetime of the Tree.
type NodeID int

// Node is one node of a rooted, ordered tree. Child order is display order.
type Node struct {
	id       NodeID
	tree     *Tree
	parent   *Node
	children []*Node
	alive    bool
}

// ID returns the node's identifier, unique within its Tree.
func (n *Node) ID() NodeID {
	return n.id
}

// Tree returns the owning tree.
func (n *Node) Tree() *Tree {
	return n.tree
}

// Parent returns the parent node, or nil for the root and for the root of a
// detached subtree.
func (n *Node) Parent() *Node {
	return n.parent
}

// IsRoot reports whether n is the root of its tree. The root of a detached
// subtree is not a root.
func (n *Node) IsRoot() bool {
	return n.tree != nil && n.tree.root == n
}

// Children returns a copy of the ordered child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Child returns the child at position idx.
func (n *Node) Child(idx int) *Node {
	Assert(idx >= 0 && idx < len(n.children), "child index %d out of range [0,%d) for node %d", idx, len(n.children), n.id)
	return n.children[idx]
}

// ChildCount returns the number of children.
func (n *Node) ChildCount() int {
	return len(n.children)
}

// Index returns n's position among its siblings, or -1 if it has no parent.
func (n *Node) Index() int {
	if n.parent == nil {
		return -1
	}
	for i, c := range n.parent.children {
		if c == n {
			return i
		}
	}
	Assert(false, "node %d missing from its parent's child list", n.id)
	return -1
}

// Attached reports whether n is reachable from the tree root.
func (n *Node) Attached() bool {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur.IsRoot()
}

// Alive reports whether n has not been destroyed.
func (n *Node) Alive() bool {
	return n.alive
}

// Depth returns the number of edges between n and the root of its subtree.
func (n *Node) Depth() int {
	d := 0
	for cur := n.parent; cur != nil; cur = cur.parent {
		d++
	}
	return d
}

// isAncestorOf reports whether n is a (non-strict) ancestor of other.
func (n *Node) isAncestorOf(other *Node) bool {
	for cur := other; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// prunes the subtree below the visited node.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// PostOrder returns n's subtree in post-order: children left to right before
// their parent. This is the order in which Destroy notifies the manager.
func (n *Node) PostOrder() []*Node {
	var out []*Node
	var visit func(*Node)
	visit = func(cur *Node) {
		for _, c := range cur.children {
			visit(c)
		}
		out = append(out, cur)
	}
	visit(n)
	return out
}
