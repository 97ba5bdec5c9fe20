package model

import (
	"strings"
	"testing"

	json "github.com/goccy/go-json"
)

func sampleTree() *ProofTree {
	return &ProofTree{
		Label:     3,
		Number:    7,
		Sentence:  Sentence{1, 2},
		Essential: true,
		Children: []*ProofTree{
			{Label: 1, Essential: false},
			{Label: 2, Essential: true, Children: []*ProofTree{{Label: 1, Essential: true}}},
		},
	}
}

func TestStatus_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{"Loaded", StatusLoaded, true},
		{"Unloaded", StatusUnloaded, true},
		{"Invalid", "loading", false},
		{"Empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.want {
				t.Errorf("Status.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProofTree_Count(t *testing.T) {
	pt := sampleTree()
	if got := pt.Count(false); got != 3 {
		t.Errorf("Count(false) = %d, want 3", got)
	}
	if got := pt.Count(true); got != 4 {
		t.Errorf("Count(true) = %d, want 4", got)
	}
	var nilTree *ProofTree
	if got := nilTree.Count(true); got != 0 {
		t.Errorf("nil Count = %d, want 0", got)
	}
}

func TestProofTree_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tree    *ProofTree
		wantErr string
	}{
		{"Valid", sampleTree(), ""},
		{"Nil", nil, "nil"},
		{"NegativeLabel", &ProofTree{Label: -1}, "invalid label"},
		{"NilChild", &ProofTree{Label: 4, Children: []*ProofTree{nil}}, "child 0 is nil"},
		{"DeepNegative", &ProofTree{Children: []*ProofTree{{Children: []*ProofTree{{Label: -2}}}}}, "invalid label code -2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tree.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestProofTree_CloneIsDeep(t *testing.T) {
	pt := sampleTree()
	clone := pt.Clone()
	clone.Sentence[0] = 99
	clone.Children[1].Children[0].Label = 42

	if pt.Sentence[0] != 1 {
		t.Errorf("clone shares sentence storage")
	}
	if pt.Children[1].Children[0].Label != 1 {
		t.Errorf("clone shares children")
	}
}

func TestContext_DecodeAndIndex(t *testing.T) {
	raw := `{
		"name": "set.mm",
		"status": "loaded",
		"root_step_id": 0,
		"symbols": ["", "(", ")", "ph"],
		"labels": ["", "ax-1", "mp"],
		"addendum": {"htmldefs": ["", "(", ")", "&phi;"], "htmlcss": ".x{}", "htmlfont": "class=\"f\""},
		"max_number": 12
	}`
	var ctx Context
	if err := json.Unmarshal([]byte(raw), &ctx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !ctx.Loaded() {
		t.Fatalf("expected loaded context")
	}
	if ctx.MaxNumber != 12 {
		t.Errorf("MaxNumber = %d, want 12", ctx.MaxNumber)
	}
	if got := ctx.SymbolIndex()["ph"]; got != 3 {
		t.Errorf("SymbolIndex[ph] = %d, want 3", got)
	}
	if _, ok := ctx.SymbolIndex()[""]; ok {
		t.Errorf("empty slot must not be indexed")
	}
	if got := ctx.LabelIndex()["mp"]; got != 2 {
		t.Errorf("LabelIndex[mp] = %d, want 2", got)
	}
	if got := ctx.Label(9); got != "" {
		t.Errorf("Label(9) = %q, want empty", got)
	}
	if got := ctx.Addendum.HTMLDefs[3]; got != "&phi;" {
		t.Errorf("htmldefs[3] = %q", got)
	}
}

func TestContext_Describe(t *testing.T) {
	loaded := &Context{Name: "w0", Status: StatusLoaded, Symbols: []string{"", "a", "b"}, Labels: []string{"", "x"}}
	if got, want := loaded.Describe(), "w0: database contains 2 labels and 3 symbols"; got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
	unloaded := &Context{Name: "w1", Status: StatusUnloaded}
	if got, want := unloaded.Describe(), "w1: not loaded"; got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}

func TestVersion_Supports(t *testing.T) {
	tests := []struct {
		name string
		v    Version
		want bool
	}{
		{"InRange", Version{"mmpp", 1, 1}, true},
		{"Wide", Version{"mmpp", 0, 3}, true},
		{"TooNew", Version{"mmpp", 2, 3}, false},
		{"TooOld", Version{"mmpp", 0, 0}, false},
		{"WrongApp", Version{"other", 1, 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.v.Supports("mmpp", 1); got != tt.want {
				t.Errorf("Supports() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProofTree_DecodeWireFormat(t *testing.T) {
	raw := `{"label": 5, "number": 2, "sentence": [1, 3], "essential": true,
		"dists": [[3, 4]], "children": [{"label": 1, "number": 0, "sentence": [], "essential": false, "dists": [], "children": []}]}`
	var pt ProofTree
	if err := json.Unmarshal([]byte(raw), &pt); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if pt.Dists[0] != (DistPair{3, 4}) {
		t.Errorf("dists = %v", pt.Dists)
	}
	if len(pt.Children) != 1 || pt.Children[0].Essential {
		t.Errorf("children = %+v", pt.Children)
	}
}
