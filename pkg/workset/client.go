// Package workset talks to the proof backend. A Source answers the four
// lookups the viewer needs; Client serves them over the HTTP API, FileSource
// from an offline dump and Cache from a local SQLite store in front of either.
package workset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
)

const (
	// APIVersion is the backend API version this client speaks
	APIVersion = 1
	// Application is the backend application name reported by /api/version
	Application = "mmpp"

	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

var (
	// ErrNotFound is returned when the backend has no such workset or token
	ErrNotFound = errors.New("not found")
	// ErrVersionMismatch is returned when the backend does not speak APIVersion
	ErrVersionMismatch = errors.New("incompatible backend")
	// ErrNotLoaded is returned when a workset has no library data
	ErrNotLoaded = errors.New("workset not loaded")
)

// Source answers the lookups the viewer needs, keyed by label or symbol code
type Source interface {
	Context(ctx context.Context) (*model.Context, error)
	Sentence(ctx context.Context, tok int) (model.Sentence, error)
	Assertion(ctx context.Context, tok int) (*model.Assertion, error)
	ProofTree(ctx context.Context, tok int) (*model.ProofTree, error)
}

// APIError is a failed backend request other than a 404
type APIError struct {
	Path       string
	StatusCode int
	Body       string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: HTTP %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: HTTP %d: %s", e.Path, e.StatusCode, e.Body)
}

// Client is an HTTP client for the backend API
type Client struct {
	baseURL string
	http    *http.Client
	log     *logrus.Entry
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the request logger
func WithLogger(log *logrus.Entry) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		log:     logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Version asks the backend which application and API versions it serves
func (c *Client) Version(ctx context.Context) (model.Version, error) {
	var v model.Version
	if err := c.get(ctx, "/api/version", &v); err != nil {
		return model.Version{}, err
	}
	return v, nil
}

// CheckVersion fails with ErrVersionMismatch unless the backend supports
// APIVersion.
func (c *Client) CheckVersion(ctx context.Context) error {
	v, err := c.Version(ctx)
	if err != nil {
		return err
	}
	if !v.Supports(Application, APIVersion) {
		return fmt.Errorf("%w: application %q serves API versions %d-%d, need %d",
			ErrVersionMismatch, v.Application, v.MinVersion, v.MaxVersion, APIVersion)
	}
	return nil
}

// Create starts a new workset on the backend
func (c *Client) Create(ctx context.Context) (*Workset, error) {
	var resp struct {
		ID int `json:"id"`
	}
	if err := c.get(ctx, c.apiPath("workset/create"), &resp); err != nil {
		return nil, fmt.Errorf("create workset: %w", err)
	}
	return c.Open(ctx, resp.ID)
}

// List returns the worksets known to the backend
func (c *Client) List(ctx context.Context) ([]model.WorksetInfo, error) {
	var resp struct {
		Worksets []model.WorksetInfo `json:"worksets"`
	}
	if err := c.get(ctx, c.apiPath("workset/list"), &resp); err != nil {
		return nil, fmt.Errorf("list worksets: %w", err)
	}
	return resp.Worksets, nil
}

// Open attaches to an existing workset and fetches its context
func (c *Client) Open(ctx context.Context, id int) (*Workset, error) {
	w := &Workset{client: c, id: id}
	if _, err := w.Context(ctx); err != nil {
		return nil, fmt.Errorf("open workset %d: %w", id, err)
	}
	return w, nil
}

func (c *Client) apiPath(rest string) string {
	return fmt.Sprintf("/api/%d/%s", APIVersion, rest)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	c.log.WithFields(logrus.Fields{
		"path":   path,
		"status": resp.StatusCode,
		"took":   time.Since(start).Round(time.Millisecond),
	}).Debug("api request")

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("GET %s: %w", path, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Workset is one session on the backend. It implements Source.
type Workset struct {
	client *Client
	id     int
	last   *model.Context
}

// ID returns the workset id
func (w *Workset) ID() int {
	return w.id
}

// Name returns the workset name from the last fetched context
func (w *Workset) Name() string {
	if w.last == nil {
		return ""
	}
	return w.last.Name
}

// Loaded reports whether the last fetched context had library data
func (w *Workset) Loaded() bool {
	return w.last.Loaded()
}

// Last returns the last fetched context without a request
func (w *Workset) Last() *model.Context {
	return w.last
}

// Load asks the backend to load the library, then refreshes the context
func (w *Workset) Load(ctx context.Context) (*model.Context, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := w.client.get(ctx, w.path("load"), &resp); err != nil {
		return nil, fmt.Errorf("load workset %d: %w", w.id, err)
	}
	return w.Context(ctx)
}

// Context fetches the workset context
func (w *Workset) Context(ctx context.Context) (*model.Context, error) {
	var c model.Context
	if err := w.client.get(ctx, w.path("get_context"), &c); err != nil {
		return nil, err
	}
	w.last = &c
	return &c, nil
}

// Sentence fetches the sentence of label tok
func (w *Workset) Sentence(ctx context.Context, tok int) (model.Sentence, error) {
	var resp struct {
		Sentence model.Sentence `json:"sentence"`
	}
	if err := w.client.get(ctx, w.path(fmt.Sprintf("get_sentence/%d", tok)), &resp); err != nil {
		return nil, err
	}
	return resp.Sentence, nil
}

// Assertion fetches the assertion of label tok
func (w *Workset) Assertion(ctx context.Context, tok int) (*model.Assertion, error) {
	var resp struct {
		Assertion *model.Assertion `json:"assertion"`
	}
	if err := w.client.get(ctx, w.path(fmt.Sprintf("get_assertion/%d", tok)), &resp); err != nil {
		return nil, err
	}
	if resp.Assertion == nil {
		return nil, fmt.Errorf("assertion %d: %w", tok, ErrNotFound)
	}
	return resp.Assertion, nil
}

// ProofTree fetches the proof tree of label tok
func (w *Workset) ProofTree(ctx context.Context, tok int) (*model.ProofTree, error) {
	var resp struct {
		ProofTree *model.ProofTree `json:"proof_tree"`
	}
	if err := w.client.get(ctx, w.path(fmt.Sprintf("get_proof_tree/%d", tok)), &resp); err != nil {
		return nil, err
	}
	if resp.ProofTree == nil {
		return nil, fmt.Errorf("proof tree %d: %w", tok, ErrNotFound)
	}
	return resp.ProofTree, nil
}

func (w *Workset) path(rest string) string {
	return w.client.apiPath(fmt.Sprintf("workset/%d/%s", w.id, rest))
}
