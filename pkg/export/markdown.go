package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
	"github.com/Dicklesworthstone/proof_viewer/pkg/proof"
	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
	"github.com/Dicklesworthstone/proof_viewer/pkg/workset"
)

// Report is the data shown by a markdown export
type Report struct {
	Label string
	View  *workset.AssertionView
	Root  *proof.Step
	Steps int
}

// NewReport renders the proof of v with r
func NewReport(label string, v *workset.AssertionView, r *render.Renderer, opts proof.Options) (*Report, error) {
	root, count, err := proof.Render(v.ProofTree, r, opts)
	if err != nil {
		return nil, err
	}
	return &Report{Label: label, View: v, Root: root, Steps: count}, nil
}

// GenerateMarkdown creates a markdown report of one assertion: its
// hypotheses, thesis, distinct variables and a table of the proof steps.
// Statements are rendered with r; text and LaTeX styles are wrapped as code
// or math, HTML styles are inserted as inline HTML.
func GenerateMarkdown(rep *Report, r *render.Renderer, now time.Time) string {
	var sb strings.Builder
	v := rep.View
	ctx := r.Context()

	sb.WriteString(fmt.Sprintf("# %s\n\n", rep.Label))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", now.Format(time.RFC1123)))

	sb.WriteString("## Summary\n\n")
	sb.WriteString(fmt.Sprintf("- **Context**: %s\n", ctx.Name))
	if v.Assertion.Number > 0 {
		sb.WriteString(fmt.Sprintf("- **Number**: %d\n", v.Assertion.Number))
	}
	sb.WriteString(fmt.Sprintf("- **Valid**: %t\n", v.Assertion.Valid))
	sb.WriteString(fmt.Sprintf("- **Steps**: %d\n\n", rep.Steps))

	if len(v.FloatHyps) > 0 {
		sb.WriteString("## Floating Hypotheses\n\n")
		writeSentences(&sb, r, v.FloatHyps)
	}
	if len(v.EssHyps) > 0 {
		sb.WriteString("## Hypotheses\n\n")
		writeSentences(&sb, r, v.EssHyps)
	}

	sb.WriteString("## Thesis\n\n")
	sb.WriteString(inline(r, r.FromCodes(v.Thesis)) + "\n\n")

	if len(v.Assertion.Dists) > 0 {
		sb.WriteString("## Distinct Variables\n\n")
		for _, d := range v.Assertion.Dists {
			sb.WriteString("- " + inline(r, r.Dist(d)) + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Proof\n\n")
	sb.WriteString("| Step | Hyp | Ref | Expression |\n")
	sb.WriteString("|---|---|---|---|\n")
	for _, s := range proof.Flatten(rep.Root) {
		ref := s.Label
		if s.NumberLabel != "" {
			ref += " (" + s.NumberLabel + ")"
		}
		if !s.Essential {
			ref = "_" + ref + "_"
		}
		hyps := make([]string, len(s.ChildrenSteps))
		for i, n := range s.ChildrenSteps {
			hyps[i] = fmt.Sprint(n)
		}
		sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s %s |\n",
			s.Step, strings.Join(hyps, ", "), cell(ref), s.Indentation, cell(inline(r, s.Sentence))))
	}
	sb.WriteString("\n")

	return sb.String()
}

func writeSentences(sb *strings.Builder, r *render.Renderer, sentences []model.Sentence) {
	for i, s := range sentences {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, inline(r, r.FromCodes(s))))
	}
	sb.WriteString("\n")
}

// inline wraps a rendered statement so markdown leaves it alone
func inline(r *render.Renderer, s string) string {
	if s == "" {
		return ""
	}
	switch r.Style() {
	case render.LaTeX:
		return "$" + s + "$"
	case render.HTML, render.AltHTML:
		return s
	default:
		return "`" + s + "`"
	}
}

// cell escapes pipes so a statement fits in a table cell
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// SaveMarkdownToFile writes the report to filename, creating its directory
func SaveMarkdownToFile(rep *Report, r *render.Renderer, filename string) error {
	content := GenerateMarkdown(rep, r, time.Now())
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export directory: %w", err)
		}
	}
	return os.WriteFile(filename, []byte(content), 0o644)
}
