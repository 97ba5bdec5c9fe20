package proof

import (
	"fmt"

	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
	"github.com/Dicklesworthstone/proof_viewer/pkg/tree"
)

// Index maps live tree nodes to the payload they display. Nodes created
// interactively have no entry.
type Index struct {
	payloads map[tree.NodeID]*model.ProofTree
}

// NewIndex creates an empty index
func NewIndex() *Index {
	return &Index{payloads: make(map[tree.NodeID]*model.ProofTree)}
}

// Payload returns the payload displayed by node id
func (ix *Index) Payload(id tree.NodeID) (*model.ProofTree, bool) {
	pt, ok := ix.payloads[id]
	return pt, ok
}

// Set records the payload displayed by node id
func (ix *Index) Set(id tree.NodeID, pt *model.ProofTree) {
	ix.payloads[id] = pt
}

// Delete drops the entry of node id
func (ix *Index) Delete(id tree.NodeID) {
	delete(ix.payloads, id)
}

// Forget drops the entries of n and its whole subtree
func (ix *Index) Forget(n *tree.Node) {
	n.Walk(func(cur *tree.Node) bool {
		delete(ix.payloads, cur.ID())
		return true
	})
}

// Len returns the number of indexed nodes
func (ix *Index) Len() int {
	return len(ix.payloads)
}

// Populate builds the editable step list for pt under parent. The kept
// payload nodes are first assembled as a detached subtree and recorded in
// ix, then spliced in at the end of parent's children so the editor paints
// them in one pass. A non-essential root with non-essentials excluded
// yields no node and a nil result.
func Populate(t *tree.Tree, parent *tree.Node, pt *model.ProofTree, ix *Index, opts Options) (*tree.Node, error) {
	if pt == nil {
		return nil, fmt.Errorf("populate steps: nil proof tree")
	}
	if !opts.keep(pt) {
		return nil, nil
	}
	root := t.NewDetached()
	ix.Set(root.ID(), pt)
	if err := build(t, root, pt, ix, opts, 0); err != nil {
		ix.Forget(root)
		t.Destroy(root)
		return nil, fmt.Errorf("populate steps: %w", err)
	}
	t.Reparent(parent, root, parent.ChildCount())
	return root, nil
}

func build(t *tree.Tree, n *tree.Node, pt *model.ProofTree, ix *Index, opts Options, depth int) error {
	if depth >= opts.maxDepth() {
		return fmt.Errorf("%w: more than %d levels", ErrTooDeep, opts.maxDepth())
	}
	for _, child := range pt.Children {
		if !opts.keep(child) {
			continue
		}
		c := t.AppendChild(n)
		ix.Set(c.ID(), child)
		if err := build(t, c, child, ix, opts, depth+1); err != nil {
			return err
		}
	}
	return nil
}
