// Package export writes assertion reports and serves a live preview of a
// proof.
//
// This file implements the live preview server: the assertion page is
// rendered from the dump on every request, and connected browsers receive a
// Server-Sent Event whenever the dump is rewritten.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/proof_viewer/pkg/proof"
	"github.com/Dicklesworthstone/proof_viewer/pkg/render"
	"github.com/Dicklesworthstone/proof_viewer/pkg/workset"
)

// EventsPath is the SSE endpoint the preview script connects to.
const EventsPath = "/__preview__/events"

// LiveReloadHub manages SSE connections and watches one dump file.
type LiveReloadHub struct {
	dumpPath string
	watcher  *fsnotify.Watcher
	log      *logrus.Entry

	mu      sync.RWMutex
	clients map[chan struct{}]struct{}

	ctx    context.Context
	cancel context.CancelFunc

	lastEvent time.Time
	debounce  time.Duration
}

// NewLiveReloadHub creates a hub for the dump at dumpPath.
func NewLiveReloadHub(dumpPath string, log *logrus.Entry) (*LiveReloadHub, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &LiveReloadHub{
		dumpPath: dumpPath,
		watcher:  watcher,
		log:      log,
		clients:  make(map[chan struct{}]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		debounce: 200 * time.Millisecond,
	}, nil
}

// Start begins watching. The directory is watched rather than the file, since
// dumps are replaced by renaming a temporary file over them.
func (h *LiveReloadHub) Start() error {
	if err := h.watcher.Add(filepath.Dir(h.dumpPath)); err != nil {
		return fmt.Errorf("watch dump directory: %w", err)
	}
	go h.watchLoop()
	return nil
}

// Stop shuts down the hub and disconnects every client.
func (h *LiveReloadHub) Stop() {
	h.cancel()
	h.watcher.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		close(ch)
	}
	h.clients = make(map[chan struct{}]struct{})
}

// ClientCount returns the number of connected clients.
func (h *LiveReloadHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *LiveReloadHub) watchLoop() {
	name := filepath.Base(h.dumpPath)
	for {
		select {
		case <-h.ctx.Done():
			return

		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			now := time.Now()
			if now.Sub(h.lastEvent) < h.debounce {
				continue
			}
			h.lastEvent = now
			h.log.WithField("path", h.dumpPath).Debug("dump changed, reloading clients")
			h.notifyClients()

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.log.WithError(err).Warn("preview watcher error")
		}
	}
}

// notifyClients sends a reload signal to every connected client without
// blocking on slow ones.
func (h *LiveReloadHub) notifyClients() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.clients {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// SSEHandler returns the handler for EventsPath.
func (h *LiveReloadHub) SSEHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		clientCh := make(chan struct{}, 1)
		h.mu.Lock()
		h.clients[clientCh] = struct{}{}
		h.mu.Unlock()

		defer func() {
			h.mu.Lock()
			delete(h.clients, clientCh)
			h.mu.Unlock()
		}()

		fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-h.ctx.Done():
				return
			case _, ok := <-clientCh:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: reload\ndata: {\"action\":\"reload\"}\n\n")
				flusher.Flush()
			}
		}
	}
}

// LiveReloadScript connects to EventsPath and reloads the page on events.
const LiveReloadScript = `<script>
(function() {
  if (typeof(EventSource) === 'undefined') return;
  var reconnectDelay = 1000;
  var maxReconnectDelay = 30000;

  function connect() {
    var es = new EventSource('` + EventsPath + `');

    es.addEventListener('connected', function() {
      reconnectDelay = 1000;
    });

    es.addEventListener('reload', function() {
      location.reload();
    });

    es.onerror = function() {
      es.close();
      setTimeout(connect, reconnectDelay);
      reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
    };
  }

  connect();
})();
</script>`

// PreviewOptions configures the rendered page.
type PreviewOptions struct {
	Style render.Style
	Proof proof.Options
}

// PreviewHandler serves label's proof as an HTML page, reading the dump
// afresh on every request so edits show up on reload.
func PreviewHandler(dumpPath, label string, opts PreviewOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		page, err := renderPage(r.Context(), dumpPath, label, opts)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, workset.ErrNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	})
}

func renderPage(ctx context.Context, dumpPath, label string, opts PreviewOptions) ([]byte, error) {
	src, err := workset.OpenFile(dumpPath)
	if err != nil {
		return nil, err
	}
	c, view, err := workset.LoadByLabel(ctx, src, label)
	if err != nil {
		return nil, err
	}
	r := render.New(opts.Style, c)
	root, _, err := proof.Render(view.ProofTree, r, opts.Proof)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := proof.FormatHTML(&buf, label, root, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewPreviewMux mounts the SSE endpoint and the page, with the reload
// script injected into every HTML response.
func NewPreviewMux(hub *LiveReloadHub, page http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(EventsPath, hub.SSEHandler())
	mux.Handle("/", liveReloadMiddleware(page))
	return mux
}

// ServePreview serves label's proof from dumpPath on addr until ctx is done.
func ServePreview(ctx context.Context, addr, dumpPath, label string, opts PreviewOptions, log *logrus.Entry) error {
	hub, err := NewLiveReloadHub(dumpPath, log)
	if err != nil {
		return err
	}
	if err := hub.Start(); err != nil {
		return err
	}
	defer hub.Stop()

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewPreviewMux(hub, PreviewHandler(dumpPath, label, opts)),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		// Open event streams only end once the hub stops.
		hub.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// liveReloadMiddleware injects LiveReloadScript into HTML responses.
func liveReloadMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ext := filepath.Ext(r.URL.Path); ext != "" && ext != ".html" {
			next.ServeHTTP(w, r)
			return
		}
		irw := &injectingResponseWriter{
			ResponseWriter: w,
			inject:         []byte(LiveReloadScript),
		}
		next.ServeHTTP(irw, r)
		irw.Flush()
	})
}

// injectingResponseWriter buffers an HTML body and inserts the script
// before </body>. Error responses pass through untouched.
type injectingResponseWriter struct {
	http.ResponseWriter
	inject    []byte
	buf       []byte
	committed bool
}

func (w *injectingResponseWriter) WriteHeader(status int) {
	if status != http.StatusOK {
		w.committed = true
		w.ResponseWriter.WriteHeader(status)
	}
}

func (w *injectingResponseWriter) Write(b []byte) (int, error) {
	if w.committed {
		return w.ResponseWriter.Write(b)
	}
	w.buf = append(w.buf, b...)
	return len(b), nil
}

// Flush writes the buffered body with the script injected.
func (w *injectingResponseWriter) Flush() {
	if !w.committed && len(w.buf) > 0 {
		w.committed = true
		body := w.buf
		if idx := bytes.LastIndex(body, []byte("</body>")); idx >= 0 {
			out := make([]byte, 0, len(body)+len(w.inject))
			out = append(out, body[:idx]...)
			out = append(out, w.inject...)
			body = append(out, body[idx:]...)
		} else {
			body = append(body, w.inject...)
		}
		w.ResponseWriter.Write(body)
	}
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
