// Package proof walks proof-tree payloads. Render produces the numbered,
// read-only view; Populate builds the editable step list on a live tree.
//
// Both share one traversal rule: a child takes part only if it is essential
// (or non-essentials are included), the whole subtree of a skipped child is
// skipped, and a step is numbered after all of its kept children.
package proof

import (
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
)

// DefaultMaxDepth bounds the recursion of Render and Populate
const DefaultMaxDepth = 4096

// ErrTooDeep is returned when a proof tree is deeper than Options.MaxDepth
var ErrTooDeep = errors.New("proof tree too deep")

// Options controls traversal
type Options struct {
	IncludeNonEssentials bool
	MaxDepth             int
}

func (o Options) maxDepth() int {
	if o.MaxDepth <= 0 {
		return DefaultMaxDepth
	}
	return o.MaxDepth
}

func (o Options) keep(pt *model.ProofTree) bool {
	return o.IncludeNonEssentials || pt.Essential
}

// Step is one rendered proof step
type Step struct {
	Label       string
	LabelCode   int
	Number      int
	NumberLabel string
	NumberColor string
	Sentence    string
	Dists       []string
	Indentation string
	Depth       int
	Essential   bool
	Step        int

	// Fragment is this step's HTML, its kept children's fragments included
	Fragment      template.HTML
	Children      []template.HTML
	ChildrenSteps []int
	Substeps      []*Step
}

// Render numbers and renders the proof tree rooted at pt. It returns the
// root step and the final step counter, which equals the number of steps
// included.
func Render(pt *model.ProofTree, r *render.Renderer, opts Options) (*Step, int, error) {
	if pt == nil {
		return nil, 0, errors.New("render proof: nil proof tree")
	}
	w := &walker{r: r, opts: opts, max: r.Context().MaxNumber}
	step, count, err := w.render(pt, 0, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("render proof: %w", err)
	}
	return step, count, nil
}

type walker struct {
	r    *render.Renderer
	opts Options
	max  int
}

func (w *walker) render(pt *model.ProofTree, depth, counter int) (*Step, int, error) {
	if depth >= w.opts.maxDepth() {
		return nil, counter, fmt.Errorf("%w: more than %d levels", ErrTooDeep, w.opts.maxDepth())
	}

	var subs []*Step
	for _, child := range pt.Children {
		if !w.opts.keep(child) {
			continue
		}
		sub, next, err := w.render(child, depth+1, counter)
		if err != nil {
			return nil, counter, err
		}
		counter = next
		subs = append(subs, sub)
	}
	counter++

	s := &Step{
		Label:       labelText(w.r.Context(), pt.Label),
		LabelCode:   pt.Label,
		Number:      pt.Number,
		NumberLabel: NumberLabel(pt.Number),
		NumberColor: NumberColor(pt.Number, w.max),
		Sentence:    w.r.FromCodes(pt.Sentence),
		Indentation: Indentation(depth),
		Depth:       depth,
		Essential:   pt.Essential,
		Step:        counter,
		Substeps:    subs,
	}
	for _, d := range pt.Dists {
		s.Dists = append(s.Dists, w.r.Dist(d))
	}
	for _, sub := range subs {
		s.Children = append(s.Children, sub.Fragment)
		s.ChildrenSteps = append(s.ChildrenSteps, sub.Step)
	}
	frag, err := stepFragment(s, isMarkup(w.r.Style()))
	if err != nil {
		return nil, counter, err
	}
	s.Fragment = frag
	return s, counter, nil
}

// Indentation is the depth marker: depth dots followed by depth+1
func Indentation(depth int) string {
	return strings.Repeat(". ", depth) + fmt.Sprint(depth+1)
}

// Flatten lists the steps of the rendered tree in step-number order
func Flatten(root *Step) []*Step {
	var out []*Step
	var walk func(*Step)
	walk = func(s *Step) {
		for _, sub := range s.Substeps {
			walk(sub)
		}
		out = append(out, s)
	}
	if root != nil {
		walk(root)
	}
	return out
}

func labelText(ctx *model.Context, code int) string {
	if l := ctx.Label(code); l != "" {
		return l
	}
	return fmt.Sprintf("?%d", code)
}

func isMarkup(style render.Style) bool {
	return style == render.HTML || style == render.AltHTML
}
