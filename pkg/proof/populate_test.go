package proof

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/proof_viewer/pkg/editor"
	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
	"github.com/Dicklesworthstone/proof_viewer/pkg/surface"
	"github.com/Dicklesworthstone/proof_viewer/pkg/tree"
)

type stepEditor struct {
	doc     *surface.Document
	painter *Painter
	manager *editor.Manager
	tree    *tree.Tree
}

func newStepEditor(style render.Style) *stepEditor {
	doc := surface.NewDocument("modifier")
	p := NewPainter(doc, render.New(style, testContext()), nil)
	m := editor.NewManager("modifier", doc, p)
	return &stepEditor{doc: doc, painter: p, manager: m, tree: tree.New("steps", m)}
}

func labelsInOrder(e *stepEditor, n *tree.Node) []string {
	var out []string
	n.Walk(func(cur *tree.Node) bool {
		if pt, ok := e.painter.Index().Payload(cur.ID()); ok {
			out = append(out, e.tree.ID()+":"+testContext().Label(pt.Label))
		}
		return true
	})
	return out
}

func TestPopulatePrunesAndPaints(t *testing.T) {
	e := newStepEditor(render.Text)
	root, err := Populate(e.tree, e.tree.Root(), exampleTree(), e.painter.Index(), Options{})
	require.NoError(t, err)
	require.NotNil(t, root)

	assert.Equal(t, []string{"steps:root", "steps:A", "steps:B"}, labelsInOrder(e, root))
	assert.Equal(t, 3, e.painter.Index().Len())
	assert.Equal(t, 4, e.tree.Len(), "tree root plus three steps")

	for _, n := range []*tree.Node{root, root.Child(0), root.Child(1)} {
		assert.True(t, e.manager.Visible(n))
	}
	assert.Equal(t, "x < y", e.doc.Text(e.manager.Data1ID(root)))
	assert.Equal(t, "y", e.doc.Text(e.manager.Data1ID(root.Child(1))))
	assert.Equal(t, "B 2 x, y", e.doc.Text(e.manager.Data2ID(root.Child(1))))
	assert.Equal(t, "root", e.doc.Text(e.manager.Data2ID(root)), "number 0 is not shown")
	assert.True(t, e.doc.Hidden(e.manager.Data2ID(root)))
}

func TestPopulateIncludesNonEssentials(t *testing.T) {
	e := newStepEditor(render.Text)
	root, err := Populate(e.tree, e.tree.Root(), exampleTree(), e.painter.Index(), Options{IncludeNonEssentials: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"steps:root", "steps:A", "steps:A1", "steps:B"}, labelsInOrder(e, root))
}

func TestPopulateNonEssentialRoot(t *testing.T) {
	e := newStepEditor(render.Text)
	pt := exampleTree()
	pt.Essential = false

	root, err := Populate(e.tree, e.tree.Root(), pt, e.painter.Index(), Options{})
	require.NoError(t, err)
	assert.Nil(t, root)
	assert.Equal(t, 1, e.tree.Len())
}

func TestPopulateTooDeepLeavesNothingBehind(t *testing.T) {
	e := newStepEditor(render.Text)
	pt := &model.ProofTree{Essential: true, Children: []*model.ProofTree{
		{Essential: true, Children: []*model.ProofTree{{Essential: true}}},
	}}

	_, err := Populate(e.tree, e.tree.Root(), pt, e.painter.Index(), Options{MaxDepth: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooDeep))
	assert.Equal(t, 1, e.tree.Len())
	assert.Equal(t, 0, e.painter.Index().Len())
	assert.Equal(t, 1, e.manager.Len())
}

func TestPopulateEscapesPlainTextSentences(t *testing.T) {
	e := newStepEditor(render.Text)
	root, err := Populate(e.tree, e.tree.Root(), exampleTree(), e.painter.Index(), Options{})
	require.NoError(t, err)

	inner, err := e.doc.InnerHTML(e.manager.Data1ID(root))
	require.NoError(t, err)
	assert.Equal(t, "x &lt; y", inner)
}

func TestPainterCreateAndKillButtons(t *testing.T) {
	e := newStepEditor(render.Text)
	root, err := Populate(e.tree, e.tree.Root(), exampleTree(), e.painter.Index(), Options{})
	require.NoError(t, err)
	b := root.Child(1)

	require.True(t, e.doc.Click(editor.FullID(b)+editor.SuffixCreate))
	require.Equal(t, 1, b.ChildCount())
	created := b.Child(0)
	assert.True(t, e.manager.Visible(created))
	assert.Equal(t, "(empty step)", e.doc.Text(e.manager.Data1ID(created)))
	_, indexed := e.painter.Index().Payload(created.ID())
	assert.False(t, indexed)

	require.True(t, e.doc.Click(editor.FullID(b)+editor.SuffixKill))
	assert.False(t, b.Alive())
	assert.False(t, created.Alive())
	assert.False(t, e.doc.Has(editor.FullID(b)))
	assert.Equal(t, 2, e.painter.Index().Len())
	assert.Equal(t, []string{editor.FullID(root.Child(0))}, e.doc.ChildIDs(editor.FullID(root)+editor.SuffixChildren))
}

func TestIndexFollowsTreeDestruction(t *testing.T) {
	e := newStepEditor(render.Text)
	root, err := Populate(e.tree, e.tree.Root(), exampleTree(), e.painter.Index(), Options{})
	require.NoError(t, err)

	e.tree.Destroy(root.Child(0))
	assert.Equal(t, 2, e.painter.Index().Len(), "direct Destroy releases the entry")

	e.tree.Close()
	assert.Equal(t, 0, e.painter.Index().Len())
}

func TestPopulateSecondProofAppends(t *testing.T) {
	e := newStepEditor(render.Text)
	first, err := Populate(e.tree, e.tree.Root(), exampleTree(), e.painter.Index(), Options{})
	require.NoError(t, err)
	second, err := Populate(e.tree, e.tree.Root(), exampleTree(), e.painter.Index(), Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{editor.FullID(first), editor.FullID(second)},
		e.doc.ChildIDs(editor.FullID(e.tree.Root())+editor.SuffixChildren))
	assert.Greater(t, second.ID(), first.ID())
}
