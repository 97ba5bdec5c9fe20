package proof

import (
	"bytes"
	"html/template"

	"github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/proof_viewer/pkg/editor"
	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
	"github.com/Dicklesworthstone/proof_viewer/pkg/tree"
)

var data2Tmpl = template.Must(template.New("step_data2").Parse(
	`<span class="step_label">{{ .Label }}</span>` +
		`{{ if .NumberLabel }} <span class="step_number" style="{{ .NumberStyle }}">{{ .NumberLabel }}</span>{{ end }}` +
		`{{ range .Dists }} <span class="step_dist">{{ . }}</span>{{ end }}`))

const emptyStep = `<span class="empty_step">(empty step)</span>`

// Painter fills step containers with proof content. It paints data1 with
// the rendered sentence and data2 with label, number and distinct-variable
// pairs, and wires the create and kill buttons.
type Painter struct {
	manager *editor.Manager
	surface editor.Surface
	r       *render.Renderer
	index   *Index
	log     *logrus.Entry
}

// NewPainter creates a painter writing to surface. Pass it to
// editor.NewManager, which binds the two.
func NewPainter(surface editor.Surface, r *render.Renderer, log *logrus.Entry) *Painter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Painter{
		surface: surface,
		r:       r,
		index:   NewIndex(),
		log:     log,
	}
}

// SetEditorManager records the manager back-reference
func (p *Painter) SetEditorManager(m *editor.Manager) {
	p.manager = m
}

// Manager returns the bound editor manager
func (p *Painter) Manager() *editor.Manager {
	return p.manager
}

// Index returns the node to payload index shared with Populate
func (p *Painter) Index() *Index {
	return p.index
}

// Renderer returns the statement renderer
func (p *Painter) Renderer() *render.Renderer {
	return p.r
}

// PaintNode renders n's content into its container
func (p *Painter) PaintNode(n *tree.Node) {
	data1, data2 := emptyStep, ""
	if pt, ok := p.index.Payload(n.ID()); ok {
		data1 = p.r.FromCodes(pt.Sentence)
		if !isMarkup(p.r.Style()) {
			data1 = template.HTMLEscapeString(data1)
		}
		data2 = p.renderData2(labelText(p.r.Context(), pt.Label), pt.Number, p.dists(pt))
	}
	err := p.surface.SetInnerHTML(p.manager.Data1ID(n), data1)
	tree.Assert(err == nil, "paint data1 of node %d: %v", n.ID(), err)
	err = p.surface.SetInnerHTML(p.manager.Data2ID(n), data2)
	tree.Assert(err == nil, "paint data2 of node %d: %v", n.ID(), err)

	full := editor.FullID(n)
	p.surface.OnClick(full+editor.SuffixCreate, func() { p.CreateChild(n) })
	p.surface.OnClick(full+editor.SuffixKill, func() { p.Kill(n) })
	p.log.WithField("node", n.ID()).Debug("painted step")
}

// CreateChild appends an empty step under n
func (p *Painter) CreateChild(n *tree.Node) *tree.Node {
	child := n.Tree().AppendChild(n)
	p.log.WithFields(logrus.Fields{"node": child.ID(), "parent": n.ID()}).Debug("created step")
	return child
}

// ReleaseNode drops n from the index once the tree destroys it.
func (p *Painter) ReleaseNode(n *tree.Node) {
	p.index.Delete(n.ID())
}

// Kill destroys n and its subtree
func (p *Painter) Kill(n *tree.Node) {
	n.Tree().Destroy(n)
	p.log.WithField("node", n.ID()).Debug("killed step")
}

func (p *Painter) dists(pt *model.ProofTree) []template.HTML {
	markup := isMarkup(p.r.Style())
	var out []template.HTML
	for _, d := range pt.Dists {
		s := p.r.Dist(d)
		if !markup {
			s = template.HTMLEscapeString(s)
		}
		out = append(out, template.HTML(s))
	}
	return out
}

func (p *Painter) renderData2(label string, number int, dists []template.HTML) string {
	data := struct {
		Label       string
		NumberLabel string
		NumberStyle template.CSS
		Dists       []template.HTML
	}{
		Label:       label,
		NumberLabel: NumberLabel(number),
		NumberStyle: template.CSS("color: " + NumberColor(number, p.r.Context().MaxNumber) + ";"),
		Dists:       dists,
	}
	var buf bytes.Buffer
	err := data2Tmpl.Execute(&buf, data)
	tree.Assert(err == nil, "render step data2: %v", err)
	return buf.String()
}
