package export

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
	"github.com/Dicklesworthstone/proof_viewer/pkg/proof"
	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
	"github.com/Dicklesworthstone/proof_viewer/pkg/workset"
)

func demoDump() *workset.Dump {
	d := workset.NewDump(&model.Context{
		Name:      "demo",
		Status:    model.StatusLoaded,
		Symbols:   []string{"", "|-", "ph", "ps", "ch", "wff"},
		Labels:    []string{"", "h1", "h2", "ax-mp", "thm", "wph"},
		MaxNumber: 4,
	})
	d.Sentences[10] = model.Sentence{1, 4}
	d.Sentences[11] = model.Sentence{1, 2}
	d.Sentences[12] = model.Sentence{5, 2}
	d.Assertions[4] = &model.Assertion{
		Valid: true, Thesis: 10, EssHyps: []int{11}, FloatHyps: []int{12}, Number: 4,
		Dists: []model.DistPair{{2, 3}},
	}
	d.ProofTrees[10] = &model.ProofTree{
		Label: 3, Number: 4, Essential: true, Sentence: model.Sentence{1, 4},
		Children: []*model.ProofTree{
			{Label: 1, Number: 1, Essential: true, Sentence: model.Sentence{1, 2}},
			{Label: 5, Essential: false, Sentence: model.Sentence{5, 2}},
			{Label: 3, Number: 3, Essential: true, Sentence: model.Sentence{1, 3},
				Children: []*model.ProofTree{
					{Label: 2, Number: 2, Essential: true, Sentence: model.Sentence{1, 3}},
				}},
		},
	}
	return d
}

func demoReport(t *testing.T, style render.Style, opts proof.Options) (*Report, *render.Renderer) {
	t.Helper()
	c, view, err := workset.LoadByLabel(context.Background(), workset.NewFileSource(demoDump()), "thm")
	if err != nil {
		t.Fatalf("LoadByLabel failed: %v", err)
	}
	r := render.New(style, c)
	rep, err := NewReport("thm", view, r, opts)
	if err != nil {
		t.Fatalf("NewReport failed: %v", err)
	}
	return rep, r
}

func TestGenerateMarkdown(t *testing.T) {
	rep, r := demoReport(t, render.Text, proof.Options{})
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	md := GenerateMarkdown(rep, r, now)

	expected := []string{
		"# thm\n",
		"Generated: " + now.Format(time.RFC1123),
		"- **Context**: demo",
		"- **Number**: 4",
		"- **Steps**: 4",
		"## Floating Hypotheses\n\n1. `wff ph`",
		"## Hypotheses\n\n1. `|- ph`",
		"## Thesis\n\n`|- ch`",
		"## Distinct Variables\n\n- `ph, ps`",
		"| Step | Hyp | Ref | Expression |",
		"| 1 |  | h1 (1) | . 2 `\\|- ph` |",
		"| 3 | 2 | ax-mp (3) | . 2 `\\|- ps` |",
		"| 4 | 1, 3 | ax-mp (4) | 1 `\\|- ch` |",
	}
	for _, want := range expected {
		if !strings.Contains(md, want) {
			t.Errorf("Expected markdown to contain %q\n%s", want, md)
		}
	}
	if strings.Contains(md, "wph") {
		t.Error("Expected non-essential step to be left out")
	}
}

func TestGenerateMarkdownNonEssentials(t *testing.T) {
	rep, r := demoReport(t, render.Text, proof.Options{IncludeNonEssentials: true})
	md := GenerateMarkdown(rep, r, time.Now())

	if rep.Steps != 5 {
		t.Errorf("Expected 5 steps, got %d", rep.Steps)
	}
	if !strings.Contains(md, "| 2 |  | _wph_ | . 2 `wff ph` |") {
		t.Errorf("Expected emphasised non-essential row\n%s", md)
	}
}

func TestInline(t *testing.T) {
	ctx := demoDump().Context
	tests := []struct {
		style    render.Style
		in       string
		expected string
	}{
		{render.Text, "|- ph", "`|- ph`"},
		{render.LaTeX, `\vdash \varphi`, `$\vdash \varphi$`},
		{render.HTML, "<span>x</span>", "<span>x</span>"},
		{render.AltHTML, "<span>x</span>", "<span>x</span>"},
		{render.Text, "", ""},
	}
	for _, tc := range tests {
		if got := inline(render.New(tc.style, ctx), tc.in); got != tc.expected {
			t.Errorf("inline(%v, %q) = %q, want %q", tc.style, tc.in, got, tc.expected)
		}
	}
}

func TestSaveMarkdownToFile(t *testing.T) {
	rep, r := demoReport(t, render.Text, proof.Options{})
	path := filepath.Join(t.TempDir(), "out", "thm.md")

	if err := SaveMarkdownToFile(rep, r, path); err != nil {
		t.Fatalf("SaveMarkdownToFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read export: %v", err)
	}
	if !strings.HasPrefix(string(data), "# thm\n") {
		t.Errorf("Unexpected export header: %q", string(data[:20]))
	}
}

func TestNewReportWithoutProof(t *testing.T) {
	view := &workset.AssertionView{Assertion: &model.Assertion{}}
	if _, err := NewReport("x", view, render.New(render.Text, demoDump().Context), proof.Options{}); err == nil {
		t.Error("Expected error for an assertion without a proof tree")
	}
}
