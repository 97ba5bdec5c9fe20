package model

import (
	"fmt"
)

// Sentence is a sequence of symbol codes
type Sentence []int

// DistPair is a pair of symbol codes under a distinct-variable constraint
type DistPair [2]int

// ProofTree is one node of an assertion's proof as served by the backend.
// Label is a label code, Number the step's global number (0 or negative when
// the step has none).
type ProofTree struct {
	Label     int          `json:"label"`
	Number    int          `json:"number"`
	Sentence  Sentence     `json:"sentence"`
	Essential bool         `json:"essential"`
	Dists     []DistPair   `json:"dists"`
	Children  []*ProofTree `json:"children"`
}

// Clone creates a deep copy of the proof tree
func (p *ProofTree) Clone() *ProofTree {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Sentence != nil {
		clone.Sentence = make(Sentence, len(p.Sentence))
		copy(clone.Sentence, p.Sentence)
	}
	if p.Dists != nil {
		clone.Dists = make([]DistPair, len(p.Dists))
		copy(clone.Dists, p.Dists)
	}
	if p.Children != nil {
		clone.Children = make([]*ProofTree, len(p.Children))
		for i, c := range p.Children {
			clone.Children[i] = c.Clone()
		}
	}
	return &clone
}

// Validate checks that the proof tree is well formed
func (p *ProofTree) Validate() error {
	if p == nil {
		return fmt.Errorf("proof tree is nil")
	}
	if p.Label < 0 {
		return fmt.Errorf("invalid label code %d", p.Label)
	}
	for i, c := range p.Children {
		if c == nil {
			return fmt.Errorf("label %d: child %d is nil", p.Label, i)
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the number of nodes a renderer would include. Non-essential
// subtrees are skipped unless includeNonEssentials is set; the root always
// counts.
func (p *ProofTree) Count(includeNonEssentials bool) int {
	if p == nil {
		return 0
	}
	n := 1
	for _, c := range p.Children {
		if includeNonEssentials || c.Essential {
			n += c.Count(includeNonEssentials)
		}
	}
	return n
}

// Assertion is an axiom or theorem of the loaded database
type Assertion struct {
	Valid     bool       `json:"valid"`
	Thesis    int        `json:"thesis"`
	EssHyps   []int      `json:"ess_hyps"`
	FloatHyps []int      `json:"float_hyps"`
	Dists     []DistPair `json:"dists"`
	Number    int        `json:"number"`
}

// Addendum holds the per-symbol typesetting tables, indexed by symbol code
type Addendum struct {
	HTMLDefs    []string `json:"htmldefs"`
	AltHTMLDefs []string `json:"althtmldefs"`
	LatexDefs   []string `json:"latexdefs"`
	HTMLCSS     string   `json:"htmlcss"`
	HTMLFont    string   `json:"htmlfont"`
}

// Status is the load state of a workset
type Status string

const (
	StatusLoaded   Status = "loaded"
	StatusUnloaded Status = "unloaded"
)

// IsValid returns true if the status is a recognized value
func (s Status) IsValid() bool {
	switch s {
	case StatusLoaded, StatusUnloaded:
		return true
	}
	return false
}

// Context is the workset description returned by get_context. Symbols and
// Labels are indexed by code; slot 0 is unused.
type Context struct {
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	RootStepID int       `json:"root_step_id"`
	Symbols    []string  `json:"symbols,omitempty"`
	Labels     []string  `json:"labels,omitempty"`
	Addendum   *Addendum `json:"addendum,omitempty"`
	MaxNumber  int       `json:"max_number,omitempty"`
}

// Loaded reports whether the workset has library data
func (c *Context) Loaded() bool {
	return c != nil && c.Status == StatusLoaded
}

// SymbolIndex returns the symbol-string to code map
func (c *Context) SymbolIndex() map[string]int {
	return invert(c.Symbols)
}

// LabelIndex returns the label-string to code map
func (c *Context) LabelIndex() map[string]int {
	return invert(c.Labels)
}

// Symbol returns the symbol for code, or "" when out of range
func (c *Context) Symbol(code int) string {
	if code < 0 || code >= len(c.Symbols) {
		return ""
	}
	return c.Symbols[code]
}

// Label returns the label for code, or "" when out of range
func (c *Context) Label(code int) string {
	if code < 0 || code >= len(c.Labels) {
		return ""
	}
	return c.Labels[code]
}

// Describe returns a one-line human summary of the workset
func (c *Context) Describe() string {
	if !c.Loaded() {
		return c.Name + ": not loaded"
	}
	return fmt.Sprintf("%s: database contains %d labels and %d symbols", c.Name, len(c.Labels), len(c.Symbols))
}

// Version is the backend's answer to /api/version
type Version struct {
	Application string `json:"application"`
	MinVersion  int    `json:"min_version"`
	MaxVersion  int    `json:"max_version"`
}

// Supports reports whether the backend is the expected application and
// accepts API version v.
func (v Version) Supports(application string, apiVersion int) bool {
	return v.Application == application && v.MinVersion <= apiVersion && v.MaxVersion >= apiVersion
}

// WorksetInfo is one entry of the workset list
type WorksetInfo struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func invert(list []string) map[string]int {
	inv := make(map[string]int, len(list))
	for i, s := range list {
		if s == "" {
			continue
		}
		inv[s] = i
	}
	return inv
}
