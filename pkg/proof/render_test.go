package proof

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
)

const (
	lblRoot = 1
	lblA    = 2
	lblA1   = 3
	lblB    = 4
)

func testContext() *model.Context {
	return &model.Context{
		Name:    "demo",
		Status:  model.StatusLoaded,
		Symbols: []string{"", "x", "<", "y"},
		Labels:  []string{"", "root", "A", "A1", "B"},
		Addendum: &model.Addendum{
			HTMLDefs:  []string{"", "<i>x</i>", "&lt;", "<i>y</i>"},
			LatexDefs: []string{"", "x", "<", "y"},
		},
		MaxNumber: 10,
	}
}

// exampleTree is root -> A -> A1 (non-essential), root -> B
func exampleTree() *model.ProofTree {
	return &model.ProofTree{
		Label: lblRoot, Number: 0, Essential: true, Sentence: model.Sentence{1, 2, 3},
		Children: []*model.ProofTree{
			{
				Label: lblA, Number: 1, Essential: true, Sentence: model.Sentence{1},
				Children: []*model.ProofTree{
					{Label: lblA1, Number: 0, Essential: false, Sentence: model.Sentence{3}},
				},
			},
			{Label: lblB, Number: 2, Essential: true, Sentence: model.Sentence{3}, Dists: []model.DistPair{{1, 3}}},
		},
	}
}

func stepsByLabel(root *Step) map[string]int {
	out := make(map[string]int)
	for _, s := range Flatten(root) {
		out[s.Label] = s.Step
	}
	return out
}

func TestRenderNumbersEssentialSteps(t *testing.T) {
	r := render.New(render.Text, testContext())
	root, count, err := Render(exampleTree(), r, Options{})
	require.NoError(t, err)

	assert.Equal(t, 3, count)
	assert.Equal(t, map[string]int{"A": 1, "B": 2, "root": 3}, stepsByLabel(root))
	assert.Equal(t, []int{1, 2}, root.ChildrenSteps)
	assert.Len(t, root.Children, 2)
}

func TestRenderIncludesNonEssentials(t *testing.T) {
	r := render.New(render.Text, testContext())
	root, count, err := Render(exampleTree(), r, Options{IncludeNonEssentials: true})
	require.NoError(t, err)

	assert.Equal(t, 4, count)
	assert.Equal(t, map[string]int{"A1": 1, "A": 2, "B": 3, "root": 4}, stepsByLabel(root))
}

func TestRenderStepFields(t *testing.T) {
	r := render.New(render.Text, testContext())
	root, _, err := Render(exampleTree(), r, Options{})
	require.NoError(t, err)

	assert.Equal(t, "1", root.Indentation)
	assert.Equal(t, "", root.NumberLabel, "number 0 has no label")
	assert.Equal(t, "x < y", root.Sentence)

	b := root.Substeps[1]
	assert.Equal(t, ". 2", b.Indentation)
	assert.Equal(t, 1, b.Depth)
	assert.Equal(t, "2", b.NumberLabel)
	assert.Equal(t, NumberColor(2, 10), b.NumberColor)
	assert.Equal(t, []string{"x, y"}, b.Dists)
	assert.Empty(t, b.ChildrenSteps)
}

func TestIndentation(t *testing.T) {
	assert.Equal(t, "1", Indentation(0))
	assert.Equal(t, ". 2", Indentation(1))
	assert.Equal(t, ". . . 4", Indentation(3))
}

func TestRenderMissingLabelUsesPlaceholder(t *testing.T) {
	r := render.New(render.Text, testContext())
	root, _, err := Render(&model.ProofTree{Label: 42, Essential: true}, r, Options{})
	require.NoError(t, err)
	assert.Equal(t, "?42", root.Label)
}

func TestRenderTooDeep(t *testing.T) {
	pt := &model.ProofTree{Essential: true}
	cur := pt
	for i := 0; i < 10; i++ {
		next := &model.ProofTree{Essential: true}
		cur.Children = []*model.ProofTree{next}
		cur = next
	}
	r := render.New(render.Text, testContext())

	_, _, err := Render(pt, r, Options{MaxDepth: 5})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooDeep))

	_, count, err := Render(pt, r, Options{MaxDepth: 11})
	require.NoError(t, err)
	assert.Equal(t, 11, count)
}

func TestRenderNil(t *testing.T) {
	_, _, err := Render(nil, render.New(render.Text, testContext()), Options{})
	assert.Error(t, err)
}

func TestFragmentEscapesPlainText(t *testing.T) {
	r := render.New(render.Text, testContext())
	root, _, err := Render(exampleTree(), r, Options{})
	require.NoError(t, err)

	frag := string(root.Fragment)
	assert.Contains(t, frag, `<span class="proof_sentence">x &lt; y</span>`)
	assert.Contains(t, frag, `<span class="proof_hyps">1,2</span>`)
	// Children fragments come before the step's own row.
	assert.Less(t, strings.Index(frag, `proof_label">A<`), strings.Index(frag, `proof_label">root<`))
}

func TestFragmentKeepsMarkup(t *testing.T) {
	r := render.New(render.HTML, testContext())
	root, _, err := Render(exampleTree(), r, Options{})
	require.NoError(t, err)

	frag := string(root.Fragment)
	assert.Contains(t, frag, `<span class="gifmath"><i>x</i>&lt;<i>y</i></span>`)
	assert.Contains(t, frag, `class="proof_number"`)
	assert.Contains(t, frag, NumberColor(1, 10))
}

func TestFormatText(t *testing.T) {
	r := render.New(render.Text, testContext())
	root, _, err := Render(exampleTree(), r, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, FormatText(&buf, root))
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "STEP"))
	assert.Equal(t, []string{"1", "A", "1", ".", "2", "x"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"3", "1,2", "root", "1", "x", "<", "y"}, strings.Fields(lines[3]))
}

func TestFormatHTML(t *testing.T) {
	ctx := testContext()
	ctx.Addendum.HTMLCSS = ".alt {}"
	r := render.New(render.HTML, ctx)
	root, _, err := Render(exampleTree(), r, Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, FormatHTML(&buf, "Proof of <root>", root, r))
	page := buf.String()
	assert.Contains(t, page, "<title>Proof of &lt;root&gt;</title>")
	assert.Contains(t, page, ".gifmath img")
	assert.Contains(t, page, string(root.Fragment))
}

func TestNumberColor(t *testing.T) {
	assert.Equal(t, NumberColor(3, 10), NumberColor(3, 10))
	assert.NotEqual(t, NumberColor(3, 10), NumberColor(7, 10))
	assert.Equal(t, NumberColor(10, 10), NumberColor(25, 10), "clamped at max")
	assert.Equal(t, NumberColor(0, 10), NumberColor(-4, 10), "clamped at zero")
	assert.Equal(t, NumberColor(0, 10), NumberColor(5, 0), "no maximum")
	assert.True(t, strings.HasPrefix(NumberColor(5, 10), "#"))
	assert.Len(t, NumberColor(5, 10), 7)
}

func TestNumberLabel(t *testing.T) {
	assert.Equal(t, "", NumberLabel(0))
	assert.Equal(t, "", NumberLabel(-1))
	assert.Equal(t, "12", NumberLabel(12))
}

func genProofTree(t *rapid.T, depth int) *model.ProofTree {
	pt := &model.ProofTree{
		Label:     rapid.IntRange(1, 4).Draw(t, "label"),
		Number:    rapid.IntRange(-2, 10).Draw(t, "number"),
		Essential: rapid.Bool().Draw(t, "essential"),
	}
	if depth < 4 {
		n := rapid.IntRange(0, 3).Draw(t, "children")
		for i := 0; i < n; i++ {
			pt.Children = append(pt.Children, genProofTree(t, depth+1))
		}
	}
	return pt
}

// kept collects the payload nodes a traversal may visit: the root plus
// every node whose whole ancestor chain below the root is kept.
func kept(pt *model.ProofTree, include bool, out map[*model.ProofTree]bool) {
	out[pt] = true
	for _, c := range pt.Children {
		if include || c.Essential {
			kept(c, include, out)
		}
	}
}

// TestRenderCountAndPrune checks over random payloads that the counter
// equals the number of kept nodes, that steps are numbered 1..n in
// post-order and that no step comes from a pruned subtree.
func TestRenderCountAndPrune(t *testing.T) {
	r := render.New(render.Text, testContext())
	rapid.Check(t, func(rt *rapid.T) {
		pt := genProofTree(rt, 0)
		include := rapid.Bool().Draw(rt, "include")

		root, count, err := Render(pt, r, Options{IncludeNonEssentials: include})
		if err != nil {
			rt.Fatalf("render: %v", err)
		}
		if want := pt.Count(include); count != want {
			rt.Fatalf("count %d, want %d", count, want)
		}

		flat := Flatten(root)
		if len(flat) != count {
			rt.Fatalf("flattened %d steps, counter %d", len(flat), count)
		}
		for i, s := range flat {
			if s.Step != i+1 {
				rt.Fatalf("step %d at position %d", s.Step, i)
			}
			if !include && s.Depth > 0 && !s.Essential {
				rt.Fatalf("non-essential step %d rendered", s.Step)
			}
			for _, c := range s.ChildrenSteps {
				if c >= s.Step {
					rt.Fatalf("child step %d not before parent %d", c, s.Step)
				}
			}
		}

		keep := make(map[*model.ProofTree]bool)
		kept(pt, include, keep)
		if len(keep) != count {
			rt.Fatalf("kept %d nodes, counter %d", len(keep), count)
		}
	})
}
