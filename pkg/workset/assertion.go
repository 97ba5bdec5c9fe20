package workset

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
)

// AssertionView is everything needed to show one assertion
type AssertionView struct {
	LabelTok  int
	Assertion *model.Assertion
	Thesis    model.Sentence
	EssHyps   []model.Sentence
	FloatHyps []model.Sentence
	ProofTree *model.ProofTree
}

// LoadAssertionView fetches the assertion of labelTok, then its thesis,
// proof tree and every hypothesis sentence concurrently. The first failure
// cancels the remaining fetches and is returned.
func LoadAssertionView(ctx context.Context, src Source, labelTok int) (*AssertionView, error) {
	a, err := src.Assertion(ctx, labelTok)
	if err != nil {
		return nil, fmt.Errorf("fetch assertion %d: %w", labelTok, err)
	}

	view := &AssertionView{
		LabelTok:  labelTok,
		Assertion: a,
		EssHyps:   make([]model.Sentence, len(a.EssHyps)),
		FloatHyps: make([]model.Sentence, len(a.FloatHyps)),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := src.Sentence(gCtx, a.Thesis)
		if err != nil {
			return fmt.Errorf("fetch thesis %d: %w", a.Thesis, err)
		}
		view.Thesis = s
		return nil
	})
	g.Go(func() error {
		pt, err := src.ProofTree(gCtx, a.Thesis)
		if err != nil {
			return fmt.Errorf("fetch proof tree %d: %w", a.Thesis, err)
		}
		view.ProofTree = pt
		return nil
	})
	fetchHyps(g, gCtx, src, a.EssHyps, view.EssHyps)
	fetchHyps(g, gCtx, src, a.FloatHyps, view.FloatHyps)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

// LoadByLabel resolves label in src's context and loads its assertion view.
// An unloaded workset yields ErrNotLoaded, an unknown label ErrNotFound.
func LoadByLabel(ctx context.Context, src Source, label string) (*model.Context, *AssertionView, error) {
	c, err := src.Context(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch context: %w", err)
	}
	if !c.Loaded() {
		return nil, nil, ErrNotLoaded
	}
	tok, ok := c.LabelIndex()[label]
	if !ok {
		return nil, nil, fmt.Errorf("label %q: %w", label, ErrNotFound)
	}
	view, err := LoadAssertionView(ctx, src, tok)
	if err != nil {
		return nil, nil, err
	}
	return c, view, nil
}

func fetchHyps(g *errgroup.Group, ctx context.Context, src Source, toks []int, out []model.Sentence) {
	for i, tok := range toks {
		i, tok := i, tok
		g.Go(func() error {
			s, err := src.Sentence(ctx, tok)
			if err != nil {
				return fmt.Errorf("fetch hypothesis %d: %w", tok, err)
			}
			out[i] = s
			return nil
		})
	}
}

// Snapshot copies the context and the assertion views of labelToks from src
// into a Dump.
func Snapshot(ctx context.Context, src Source, labelToks []int) (*Dump, error) {
	c, err := src.Context(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch context: %w", err)
	}
	d := NewDump(c)
	for _, tok := range labelToks {
		view, err := LoadAssertionView(ctx, src, tok)
		if err != nil {
			return nil, err
		}
		d.Add(view)
	}
	return d, nil
}

// Add records a fetched assertion view in the dump
func (d *Dump) Add(v *AssertionView) {
	a := v.Assertion
	d.Assertions[v.LabelTok] = a
	d.Sentences[a.Thesis] = v.Thesis
	d.ProofTrees[a.Thesis] = v.ProofTree
	for i, tok := range a.EssHyps {
		d.Sentences[tok] = v.EssHyps[i]
	}
	for i, tok := range a.FloatHyps {
		d.Sentences[tok] = v.FloatHyps[i]
	}
}
