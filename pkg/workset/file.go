package workset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"

	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
)

// Dump is an offline snapshot of a workset: its context plus whatever
// sentences, assertions and proof trees were fetched, keyed by label code.
type Dump struct {
	Context    *model.Context           `json:"context"`
	Sentences  map[int]model.Sentence   `json:"sentences"`
	Assertions map[int]*model.Assertion `json:"assertions"`
	ProofTrees map[int]*model.ProofTree `json:"proof_trees"`
}

// NewDump creates an empty dump for ctx
func NewDump(ctx *model.Context) *Dump {
	return &Dump{
		Context:    ctx,
		Sentences:  make(map[int]model.Sentence),
		Assertions: make(map[int]*model.Assertion),
		ProofTrees: make(map[int]*model.ProofTree),
	}
}

// ReadDump reads a dump file
func ReadDump(path string) (*Dump, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dump: %w", err)
	}
	d, err := DecodeDump(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// DecodeDump parses an encoded dump
func DecodeDump(data []byte) (*Dump, error) {
	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse dump: %w", err)
	}
	if d.Context == nil {
		return nil, fmt.Errorf("parse dump: missing context")
	}
	if d.Sentences == nil {
		d.Sentences = make(map[int]model.Sentence)
	}
	if d.Assertions == nil {
		d.Assertions = make(map[int]*model.Assertion)
	}
	if d.ProofTrees == nil {
		d.ProofTrees = make(map[int]*model.ProofTree)
	}
	return &d, nil
}

// WriteDump writes d to path atomically
func WriteDump(path string, d *Dump) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode dump: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dump directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write dump: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write dump: %w", err)
	}
	return nil
}

// FileSource serves a Dump. It implements Source.
type FileSource struct {
	path string
	dump *Dump
}

// OpenFile loads the dump at path
func OpenFile(path string) (*FileSource, error) {
	d, err := ReadDump(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{path: path, dump: d}, nil
}

// NewFileSource serves an in-memory dump
func NewFileSource(d *Dump) *FileSource {
	return &FileSource{dump: d}
}

// Path returns the dump file path, empty for in-memory dumps
func (f *FileSource) Path() string {
	return f.path
}

// Context returns the dumped context
func (f *FileSource) Context(ctx context.Context) (*model.Context, error) {
	return f.dump.Context, nil
}

// Sentence returns the dumped sentence of tok
func (f *FileSource) Sentence(ctx context.Context, tok int) (model.Sentence, error) {
	s, ok := f.dump.Sentences[tok]
	if !ok {
		return nil, fmt.Errorf("sentence %d: %w", tok, ErrNotFound)
	}
	return s, nil
}

// Assertion returns the dumped assertion of tok
func (f *FileSource) Assertion(ctx context.Context, tok int) (*model.Assertion, error) {
	a, ok := f.dump.Assertions[tok]
	if !ok || a == nil || !a.Valid {
		return nil, fmt.Errorf("assertion %d: %w", tok, ErrNotFound)
	}
	return a, nil
}

// ProofTree returns the dumped proof tree of tok
func (f *FileSource) ProofTree(ctx context.Context, tok int) (*model.ProofTree, error) {
	pt, ok := f.dump.ProofTrees[tok]
	if !ok || pt == nil {
		return nil, fmt.Errorf("proof tree %d: %w", tok, ErrNotFound)
	}
	return pt, nil
}
