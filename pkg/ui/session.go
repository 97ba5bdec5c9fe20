package ui

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/proof_viewer/pkg/editor"
	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
	"github.com/Dicklesworthstone/proof_viewer/pkg/proof"
	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
	"github.com/Dicklesworthstone/proof_viewer/pkg/surface"
	"github.com/Dicklesworthstone/proof_viewer/pkg/tree"
	"github.com/Dicklesworthstone/proof_viewer/pkg/workset"
)

// ContainerID is the surface element the step editor renders into.
const ContainerID = "modifier"

// Session is one assertion's proof loaded into a live step editor.
type Session struct {
	Label   string
	Context *model.Context
	View    *workset.AssertionView
	Doc     *surface.Document
	Painter *proof.Painter
	Manager *editor.Manager
	Tree    *tree.Tree
	// Proof is the step holding the proof's conclusion, nil when the
	// proof has no essential steps to show.
	Proof *tree.Node
}

// SessionOptions configures OpenSession.
type SessionOptions struct {
	Style render.Style
	Proof proof.Options
	Log   *logrus.Entry
}

// OpenSession loads label's assertion from src and populates a fresh step
// editor with its proof.
func OpenSession(ctx context.Context, src workset.Source, label string, opts SessionOptions) (*Session, error) {
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	c, view, err := workset.LoadByLabel(ctx, src, label)
	if err != nil {
		return nil, err
	}

	doc := surface.NewDocument(ContainerID)
	painter := proof.NewPainter(doc, render.New(opts.Style, c), log)
	manager := editor.NewManager(ContainerID, doc, painter)
	t := tree.New("steps", manager)

	s := &Session{
		Label:   label,
		Context: c,
		View:    view,
		Doc:     doc,
		Painter: painter,
		Manager: manager,
		Tree:    t,
	}
	if view.ProofTree != nil {
		s.Proof, err = proof.Populate(t, t.Root(), view.ProofTree, painter.Index(), opts.Proof)
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("populate %s: %w", label, err)
		}
	}
	if err := t.Settle(ctx); err != nil {
		t.Close()
		return nil, fmt.Errorf("settle %s: %w", label, err)
	}
	log.WithFields(logrus.Fields{"label": label, "steps": painter.Index().Len()}).Debug("opened session")
	return s, nil
}

// Payload returns the proof step shown by n, if any.
func (s *Session) Payload(n *tree.Node) (*model.ProofTree, bool) {
	return s.Painter.Index().Payload(n.ID())
}

// Close tears the editor down.
func (s *Session) Close() {
	if !s.Tree.Closed() {
		s.Tree.Close()
	}
}
