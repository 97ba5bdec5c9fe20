// This file implements the Worker that reloads an offline dump off the UI
// thread whenever the file changes.
package ui

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/proof_viewer/pkg/workset"
)

// WorkerState represents the current state of the worker.
type WorkerState int

const (
	// WorkerIdle means the worker is waiting for file changes.
	WorkerIdle WorkerState = iota
	// WorkerProcessing means the worker is reading the dump.
	WorkerProcessing
	// WorkerStopped means the worker has been stopped.
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerProcessing:
		return "processing"
	case WorkerStopped:
		return "stopped"
	default:
		return fmt.Sprintf("WorkerState(%d)", int(s))
	}
}

// WorkerError wraps errors with phase and retry context.
type WorkerError struct {
	Phase   string    // "read" or "decode"
	Cause   error     // The underlying error
	Time    time.Time // When the error occurred
	Retries int       // Consecutive failures so far
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error {
	return e.Cause
}

// ReloadedMsg is sent to the UI when the dump has changed and decoded.
type ReloadedMsg struct {
	Dump *workset.Dump
	Hash string
}

// ReloadErrorMsg is sent to the UI when a reload fails.
type ReloadErrorMsg struct {
	Err *WorkerError
}

// Sender delivers messages to the UI. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// WorkerConfig configures the Worker.
type WorkerConfig struct {
	DumpPath      string
	DebounceDelay time.Duration
	Sender        Sender
	Log           *logrus.Entry
}

// Worker watches an offline dump and decodes it again after each burst of
// changes. Changes arriving while a reload runs trigger one more reload.
type Worker struct {
	dumpPath      string
	debounceDelay time.Duration
	sender        Sender
	log           *logrus.Entry

	mu         sync.RWMutex
	state      WorkerState
	dirty      bool
	started    bool
	dump       *workset.Dump
	lastHash   string
	lastError  *WorkerError
	errorCount int

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWorker creates a worker. Without a dump path it never reloads.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 200 * time.Millisecond
	}
	if cfg.Log == nil {
		cfg.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		dumpPath:      cfg.DumpPath,
		debounceDelay: cfg.DebounceDelay,
		sender:        cfg.Sender,
		log:           cfg.Log,
		state:         WorkerIdle,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	if cfg.DumpPath != "" {
		fw, err := fsnotify.NewWatcher()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		// Watch the directory: editors replace files by rename.
		if err := fw.Add(filepath.Dir(cfg.DumpPath)); err != nil {
			fw.Close()
			cancel()
			return nil, fmt.Errorf("watch %s: %w", cfg.DumpPath, err)
		}
		w.watcher = fw
	}
	return w, nil
}

// Start begins watching. It is idempotent.
func (w *Worker) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if w.watcher == nil {
		close(w.done)
		return nil
	}
	go w.watchLoop()
	return nil
}

// Stop halts the worker and releases the watcher. It is idempotent.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerStopped
	wasStarted := w.started
	w.mu.Unlock()

	w.cancel()
	if w.watcher != nil {
		w.watcher.Close()
	}
	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
		}
	}
	w.wg.Wait()
}

// TriggerRefresh reloads the dump now, outside the watcher.
func (w *Worker) TriggerRefresh() {
	w.spawn()
}

// Dump returns the last successfully decoded dump, or nil.
func (w *Worker) Dump() *workset.Dump {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.dump
}

// State returns the worker state.
func (w *Worker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// LastError returns the most recent error, nil after a success.
func (w *Worker) LastError() *WorkerError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

// LastHash returns the content hash of the last decoded dump.
func (w *Worker) LastHash() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastHash
}

// ResetHash forces the next reload to be delivered even if the content is
// unchanged.
func (w *Worker) ResetHash() {
	w.mu.Lock()
	w.lastHash = ""
	w.mu.Unlock()
}

func (w *Worker) watchLoop() {
	defer close(w.done)

	name := filepath.Clean(w.dumpPath)
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounceDelay)
			} else {
				timer.Reset(w.debounceDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.spawn()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("dump watcher error")
		}
	}
}

// spawn starts a reload unless the worker is stopped. The check and
// wg.Add share the lock Stop takes before it waits on wg.
func (w *Worker) spawn() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.wg.Add(1)
	w.mu.Unlock()
	go func() {
		defer w.wg.Done()
		w.process()
	}()
}

func (w *Worker) process() {
	w.mu.Lock()
	if w.state != WorkerIdle {
		if w.state == WorkerProcessing {
			w.dirty = true
		}
		w.mu.Unlock()
		return
	}
	w.state = WorkerProcessing
	w.dirty = false
	w.mu.Unlock()

	dump, hash := w.reload()

	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	if dump != nil {
		w.dump = dump
	}
	wasDirty := w.dirty
	w.state = WorkerIdle
	w.mu.Unlock()

	if w.sender != nil && dump != nil {
		w.sender.Send(ReloadedMsg{Dump: dump, Hash: hash})
	}
	if wasDirty {
		w.spawn()
	}
}

// reload reads and decodes the dump. It returns nil when the path is
// empty, the content is unchanged or reading fails.
func (w *Worker) reload() (*workset.Dump, string) {
	if w.dumpPath == "" {
		return nil, ""
	}

	var data []byte
	if werr := safeCompute("read", func() error {
		var err error
		data, err = os.ReadFile(w.dumpPath)
		return err
	}); werr != nil {
		w.fail(werr)
		return nil, ""
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if w.LastHash() == hash {
		w.log.WithField("hash", hash[:16]).Debug("dump unchanged, skipping reload")
		w.recordError(nil)
		return nil, ""
	}

	var dump *workset.Dump
	if werr := safeCompute("decode", func() error {
		var err error
		dump, err = workset.DecodeDump(data)
		return err
	}); werr != nil {
		w.fail(werr)
		return nil, ""
	}

	w.recordError(nil)
	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()
	w.log.WithFields(logrus.Fields{"path": w.dumpPath, "hash": hash[:16]}).Debug("reloaded dump")
	return dump, hash
}

func (w *Worker) fail(werr *WorkerError) {
	w.recordError(werr)
	w.log.WithError(werr).WithField("path", w.dumpPath).Warn("reload failed")
	if w.sender != nil {
		w.sender.Send(ReloadErrorMsg{Err: werr})
	}
}

func (w *Worker) recordError(err *WorkerError) {
	w.mu.Lock()
	w.lastError = err
	if err != nil {
		w.errorCount++
		err.Retries = w.errorCount
	} else {
		w.errorCount = 0
	}
	w.mu.Unlock()
}

// safeCompute runs fn, turning errors and panics into a WorkerError.
func safeCompute(phase string, fn func() error) (result *WorkerError) {
	defer func() {
		if r := recover(); r != nil {
			result = &WorkerError{
				Phase: phase,
				Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
				Time:  time.Now(),
			}
		}
	}()
	if err := fn(); err != nil {
		return &WorkerError{Phase: phase, Cause: err, Time: time.Now()}
	}
	return nil
}
