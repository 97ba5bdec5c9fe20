package workset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
)

const (
	kindSentence  = "sentence"
	kindAssertion = "assertion"
	kindProofTree = "proof_tree"
)

// Cache is a read-through SQLite cache in front of a Source. Entries are
// keyed by scope (one per backend workset), kind and label code. Contexts
// are never cached since loading a workset changes them.
type Cache struct {
	db    *sql.DB
	src   Source
	scope string
	log   *logrus.Entry
}

// OpenCache opens or creates the cache database at path. Use ":memory:"
// for a throwaway cache.
func OpenCache(path string, src Source, scope string, log *logrus.Entry) (*Cache, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache %s: %w", path, err)
	}
	// One connection: writers never contend and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	c := &Cache{db: db, src: src, scope: scope, log: log}
	if err := c.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init cache %s: %w", path, err)
	}
	return c, nil
}

func (c *Cache) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		scope TEXT NOT NULL,
		kind TEXT NOT NULL,
		tok INTEGER NOT NULL,
		body BLOB NOT NULL,
		fetched_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (scope, kind, tok)
	);
	`
	if _, err := c.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return err
	}
	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database
func (c *Cache) Close() error {
	return c.db.Close()
}

// Scope returns the cache scope
func (c *Cache) Scope() string {
	return c.scope
}

// Len returns the number of cached entries in this scope
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM entries WHERE scope = ?", c.scope).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return n, nil
}

// Purge drops every entry of this scope
func (c *Cache) Purge(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, "DELETE FROM entries WHERE scope = ?", c.scope); err != nil {
		return fmt.Errorf("purge cache: %w", err)
	}
	return nil
}

// Context passes through to the wrapped source
func (c *Cache) Context(ctx context.Context) (*model.Context, error) {
	return c.src.Context(ctx)
}

// Sentence returns the cached sentence of tok, fetching it on a miss
func (c *Cache) Sentence(ctx context.Context, tok int) (model.Sentence, error) {
	var s model.Sentence
	err := readThrough(ctx, c, kindSentence, tok, &s, func() (any, error) {
		return c.src.Sentence(ctx, tok)
	})
	return s, err
}

// Assertion returns the cached assertion of tok, fetching it on a miss
func (c *Cache) Assertion(ctx context.Context, tok int) (*model.Assertion, error) {
	var a model.Assertion
	if err := readThrough(ctx, c, kindAssertion, tok, &a, func() (any, error) {
		return c.src.Assertion(ctx, tok)
	}); err != nil {
		return nil, err
	}
	return &a, nil
}

// ProofTree returns the cached proof tree of tok, fetching it on a miss
func (c *Cache) ProofTree(ctx context.Context, tok int) (*model.ProofTree, error) {
	var pt model.ProofTree
	if err := readThrough(ctx, c, kindProofTree, tok, &pt, func() (any, error) {
		return c.src.ProofTree(ctx, tok)
	}); err != nil {
		return nil, err
	}
	return &pt, nil
}

func readThrough(ctx context.Context, c *Cache, kind string, tok int, out any, fetch func() (any, error)) error {
	var body []byte
	err := c.db.QueryRowContext(ctx,
		"SELECT body FROM entries WHERE scope = ? AND kind = ? AND tok = ?", c.scope, kind, tok).Scan(&body)
	switch {
	case err == nil:
		if err := json.Unmarshal(body, out); err == nil {
			return nil
		}
		c.log.WithFields(logrus.Fields{"kind": kind, "tok": tok}).Warn("dropping unreadable cache entry")
	case !errors.Is(err, sql.ErrNoRows):
		c.log.WithError(err).Warn("cache lookup failed")
	}

	v, err := fetch()
	if err != nil {
		return err
	}
	body, err = json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %d: %w", kind, tok, err)
	}
	if _, err := c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO entries (scope, kind, tok, body) VALUES (?, ?, ?, ?)",
		c.scope, kind, tok, body); err != nil {
		c.log.WithError(err).Warn("cache store failed")
	}
	return json.Unmarshal(body, out)
}
