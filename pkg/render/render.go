// Package render typesets sentences of a loaded workset in one of the
// supported styles. Missing typesetting data never fails a render: the
// offending token is shown as an undefined-token placeholder.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
)

// Style selects the typesetting table used for symbols
type Style int

const (
	HTML Style = iota
	AltHTML
	LaTeX
	Text
)

var styleNames = map[Style]string{
	HTML:    "html",
	AltHTML: "althtml",
	LaTeX:   "latex",
	Text:    "text",
}

// String returns the config name of the style
func (s Style) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return "style(" + strconv.Itoa(int(s)) + ")"
}

// ParseStyle maps a config string to a Style
func ParseStyle(s string) (Style, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "").Replace(key)
	for style, name := range styleNames {
		if name == key {
			return style, nil
		}
	}
	return 0, fmt.Errorf("unknown rendering style %q (want html, althtml, latex or text)", s)
}

// Renderer typesets sentences against one workset context
type Renderer struct {
	style   Style
	ctx     *model.Context
	symbols map[string]int
}

// New creates a renderer. ctx may be unloaded, in which case every token
// renders as a placeholder.
func New(style Style, ctx *model.Context) *Renderer {
	r := &Renderer{style: style, ctx: ctx}
	if ctx.Loaded() {
		r.symbols = ctx.SymbolIndex()
	}
	return r
}

// Style returns the renderer's style
func (r *Renderer) Style() Style {
	return r.style
}

// Context returns the workset context the renderer reads from
func (r *Renderer) Context() *model.Context {
	return r.ctx
}

// GlobalStyle returns the stylesheet snippet the style needs on the page
func (r *Renderer) GlobalStyle() string {
	if !r.ctx.Loaded() {
		return ""
	}
	switch r.style {
	case AltHTML:
		if r.ctx.Addendum == nil {
			return ""
		}
		return r.ctx.Addendum.HTMLCSS
	case HTML:
		return ".gifmath img { margin-bottom: -4px; };"
	}
	return ""
}

// FromCodes renders a sentence given as symbol codes
func (r *Renderer) FromCodes(tokens []int) string {
	var sb strings.Builder
	r.open(&sb)
	for i, code := range tokens {
		if r.style == Text && i > 0 {
			sb.WriteByte(' ')
		}
		def, ok := r.def(code)
		if !ok {
			r.undefined(&sb, "?"+strconv.Itoa(code))
			continue
		}
		sb.WriteString(def)
	}
	r.close(&sb)
	return sb.String()
}

// FromStrings renders free-form tokens, flagging the ones the workset does
// not define.
func (r *Renderer) FromStrings(tokens []string) string {
	var sb strings.Builder
	r.open(&sb)
	for i, tok := range tokens {
		if r.style == Text {
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(tok)
			continue
		}
		code, ok := r.symbols[tok]
		if !ok {
			r.undefined(&sb, tok)
			continue
		}
		def, ok := r.def(code)
		if !ok {
			r.undefined(&sb, tok)
			continue
		}
		sb.WriteString(def)
	}
	r.close(&sb)
	return sb.String()
}

// Dist renders a distinct-variable pair as "a, b"
func (r *Renderer) Dist(d model.DistPair) string {
	return r.FromCodes([]int{d[0]}) + ", " + r.FromCodes([]int{d[1]})
}

// Undefined reports the tokens of a free-form sentence the workset lacks
func (r *Renderer) Undefined(tokens []string) []string {
	var out []string
	for _, tok := range tokens {
		if _, ok := r.symbols[tok]; !ok {
			out = append(out, tok)
		}
	}
	return out
}

func (r *Renderer) open(sb *strings.Builder) {
	switch r.style {
	case AltHTML:
		font := ""
		if r.ctx.Loaded() && r.ctx.Addendum != nil {
			font = r.ctx.Addendum.HTMLFont
		}
		sb.WriteString("<span " + font + ">")
	case HTML:
		sb.WriteString(`<span class="gifmath">`)
	}
}

func (r *Renderer) close(sb *strings.Builder) {
	if r.style == AltHTML || r.style == HTML {
		sb.WriteString("</span>")
	}
}

func (r *Renderer) undefined(sb *strings.Builder, tok string) {
	switch r.style {
	case HTML, AltHTML:
		sb.WriteString(` <span class="undefinedToken">` + html.EscapeString(tok) + `</span> `)
	case LaTeX:
		sb.WriteString(` \textrm{` + tok + `} `)
	default:
		sb.WriteString(tok)
	}
}

func (r *Renderer) def(code int) (string, bool) {
	table := r.table()
	if code < 0 || code >= len(table) {
		return "", false
	}
	return table[code], true
}

func (r *Renderer) table() []string {
	if !r.ctx.Loaded() {
		return nil
	}
	if r.style == Text {
		return r.ctx.Symbols
	}
	add := r.ctx.Addendum
	if add == nil {
		return nil
	}
	switch r.style {
	case HTML:
		return add.HTMLDefs
	case AltHTML:
		return add.AltHTMLDefs
	case LaTeX:
		return add.LatexDefs
	}
	return nil
}
