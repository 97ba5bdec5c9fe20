package proof

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
)

var stepTmpl = template.Must(template.New("proof_step").Funcs(template.FuncMap{
	"steps": joinSteps,
}).Parse(`<div class="proof_step{{ if not .Essential }} proof_step_nonessential{{ end }}">` +
	`{{ range .Children }}{{ . }}{{ end }}` +
	`<div class="proof_row">` +
	`<span class="proof_step_number">{{ .Step }}</span>` +
	`<span class="proof_hyps">{{ steps .ChildrenSteps }}</span>` +
	`<span class="proof_label">{{ .Label }}</span>` +
	`{{ if .NumberLabel }}<span class="proof_number" style="{{ .NumberStyle }}">{{ .NumberLabel }}</span>{{ end }}` +
	`<span class="proof_indentation">{{ .Indentation }}</span>` +
	`<span class="proof_sentence">{{ .Sentence }}</span>` +
	`{{ range .Dists }}<span class="proof_dist">{{ . }}</span>{{ end }}` +
	`</div></div>`))

var pageTmpl = template.Must(template.New("proof_page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{ .Title }}</title>
<style>{{ .Style }}
.proof_step_nonessential { opacity: 0.6; }
.undefinedToken { color: red; }
</style>
</head>
<body>
<h1>{{ .Title }}</h1>
{{ .Body }}
</body>
</html>
`))

type stepView struct {
	*Step
	NumberStyle template.CSS
	Sentence    any
	Dists       []any
}

// stepFragment renders s as HTML. Sentences from a markup style are
// already HTML and are inserted as is; other styles are escaped.
func stepFragment(s *Step, markup bool) (template.HTML, error) {
	v := stepView{
		Step:        s,
		NumberStyle: template.CSS("color: " + s.NumberColor + ";"),
		Sentence:    trusted(s.Sentence, markup),
	}
	for _, d := range s.Dists {
		v.Dists = append(v.Dists, trusted(d, markup))
	}
	var buf bytes.Buffer
	if err := stepTmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render step %d: %w", s.Step, err)
	}
	return template.HTML(buf.String()), nil
}

func trusted(s string, markup bool) any {
	if markup {
		return template.HTML(s)
	}
	return s
}

// FormatHTML writes a standalone HTML page for the rendered proof
func FormatHTML(w io.Writer, title string, root *Step, r *render.Renderer) error {
	data := struct {
		Title string
		Style template.CSS
		Body  template.HTML
	}{
		Title: title,
		Style: template.CSS(r.GlobalStyle()),
		Body:  root.Fragment,
	}
	if err := pageTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("write proof page: %w", err)
	}
	return nil
}

// FormatText writes one line per step, in step order: step number, the
// steps it uses, label, number and the indented sentence.
func FormatText(w io.Writer, root *Step) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tHYP\tREF\tNUM\tEXPRESSION")
	for _, s := range Flatten(root) {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s %s\n",
			s.Step, joinSteps(s.ChildrenSteps), s.Label, s.NumberLabel, s.Indentation, s.Sentence)
	}
	return tw.Flush()
}

func joinSteps(steps []int) string {
	parts := make([]string, len(steps))
	for i, n := range steps {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
