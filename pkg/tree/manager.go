package tree

import "context"

// Task is follow-up work a hook may hand back. The structural change that
// triggered the hook is already committed when the hook runs; the tree only
// queues the task and never waits on it. Callers that need the work done call
// Tree.Settle.
type Task func(ctx context.Context) error

// Manager receives a synchronous notification for every structural change of
// the tree it is attached to.
//
// Hook order for a single mutation:
//   - CreatingNode runs after the node exists and has its parent and tree
//     links set. It must create the node's side-table entry.
//   - AfterReparenting runs right after child is spliced into parent at idx.
//   - BeforeOrphaning runs right before child is removed from parent at idx;
//     links are still intact.
//   - DestroyingNode runs for every node of a destroyed subtree, children
//     before parent. It must remove the node's side-table entry.
type Manager interface {
	Attach(t *Tree)
	CreatingNode(n *Node) Task
	DestroyingNode(n *Node) Task
	AfterReparenting(parent, child *Node, idx int)
	BeforeOrphaning(parent, child *Node, idx int)
}

// Base is the bookkeeping half of a Manager: it binds to a single tree and
// owns the per-node side-table. Concrete managers embed it and implement the
// four hooks.
type Base[T any] struct {
	tree *Tree
	objs map[NodeID]T
}

// Attach binds the manager to t. A manager serves exactly one tree.
func (b *Base[T]) Attach(t *Tree) {
	Assert(b.tree == nil, "manager already attached to tree %q", b.treeID())
	Assert(t != nil, "attach to nil tree")
	b.tree = t
	b.objs = make(map[NodeID]T)
}

// Tree returns the tree this manager is attached to.
func (b *Base[T]) Tree() *Tree {
	return b.tree
}

// SetManagerObject creates the side-table entry for n. Each node gets exactly
// one entry, created from CreatingNode.
func (b *Base[T]) SetManagerObject(n *Node, obj T) {
	b.checkNode(n)
	_, exists := b.objs[n.id]
	Assert(!exists, "manager object for node %d already set", n.id)
	b.objs[n.id] = obj
}

// ManagerObject returns the side-table entry for n. A missing entry means a
// hook ran out of order and is fatal.
func (b *Base[T]) ManagerObject(n *Node) T {
	b.checkNode(n)
	obj, ok := b.objs[n.id]
	Assert(ok, "no manager object for node %d", n.id)
	return obj
}

// DeleteManagerObject removes the side-table entry for n.
func (b *Base[T]) DeleteManagerObject(n *Node) {
	b.checkNode(n)
	_, ok := b.objs[n.id]
	Assert(ok, "no manager object to delete for node %d", n.id)
	delete(b.objs, n.id)
}

// HasManagerObject reports whether n has a side-table entry.
func (b *Base[T]) HasManagerObject(n *Node) bool {
	if b.objs == nil || n == nil {
		return false
	}
	_, ok := b.objs[n.id]
	return ok
}

// Len returns the number of side-table entries.
func (b *Base[T]) Len() int {
	return len(b.objs)
}

func (b *Base[T]) checkNode(n *Node) {
	Assert(b.tree != nil, "manager used before Attach")
	Assert(n != nil, "nil node")
	Assert(n.tree == b.tree, "node %d belongs to tree %q, manager is attached to %q", n.id, n.tree.id, b.tree.id)
}

func (b *Base[T]) treeID() string {
	if b.tree == nil {
		return ""
	}
	return b.tree.id
}
