package ui

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

// EditorState is the persisted disclosure state of the step editor, saved
// to editor-state.json in the state directory.
//
// File format (JSON):
//
//	{
//	  "version": 2,
//	  "assertions": {
//	    "ax-mp": {
//	      "0.1": {"children": true},
//	      "0": {"details": true}
//	    }
//	  }
//	}
//
// Steps are keyed by their StepPath. Only steps that differ from the default
// (children open, details closed) are stored. A missing or corrupt file, or
// one written by another schema version, means defaults everywhere.
type EditorState struct {
	Version    int                                  `json:"version"`
	Assertions map[string]map[string]StepDisclosure `json:"assertions"`
}

// StepDisclosure records a step's non-default toggles.
type StepDisclosure struct {
	ChildrenClosed bool `json:"children,omitempty"`
	DetailsOpen    bool `json:"details,omitempty"`
}

// EditorStateVersion is the current schema version. Version 1 keyed steps
// by their number, which several steps can share.
const EditorStateVersion = 2

const editorStateFileName = "editor-state.json"

// DefaultEditorState returns an empty state
func DefaultEditorState() *EditorState {
	return &EditorState{
		Version:    EditorStateVersion,
		Assertions: make(map[string]map[string]StepDisclosure),
	}
}

// EditorStatePath returns the state file inside stateDir.
func EditorStatePath(stateDir string) string {
	if stateDir == "" {
		stateDir = ".pv"
	}
	return filepath.Join(stateDir, editorStateFileName)
}

// ReadEditorState loads the state file. Missing or unreadable files yield
// the default state.
func ReadEditorState(path string, log *logrus.Entry) *EditorState {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultEditorState()
	}
	var state EditorState
	if err := json.Unmarshal(data, &state); err != nil {
		if log != nil {
			log.WithError(err).Warn("invalid editor state file, using defaults")
		}
		return DefaultEditorState()
	}
	if state.Version != EditorStateVersion {
		if log != nil {
			log.WithField("version", state.Version).Info("editor state from another version, using defaults")
		}
		return DefaultEditorState()
	}
	if state.Assertions == nil {
		state.Assertions = make(map[string]map[string]StepDisclosure)
	}
	return &state
}

// WriteEditorState saves state to path, creating the directory.
func WriteEditorState(path string, state *EditorState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// SetAssertion replaces the stored steps of label. An empty map removes
// the entry.
func (s *EditorState) SetAssertion(label string, steps map[string]StepDisclosure) {
	if len(steps) == 0 {
		delete(s.Assertions, label)
		return
	}
	s.Assertions[label] = steps
}

// Step returns the stored disclosure of the step at path.
func (s *EditorState) Step(label, path string) (StepDisclosure, bool) {
	steps, ok := s.Assertions[label]
	if !ok {
		return StepDisclosure{}, false
	}
	d, ok := steps[path]
	return d, ok
}
