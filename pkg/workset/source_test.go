package workset

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dicklesworthstone/proof_viewer/pkg/model"
)

func demoDump() *Dump {
	d := NewDump(&model.Context{
		Name:      "demo",
		Status:    model.StatusLoaded,
		Symbols:   []string{"", "x", "y", "z"},
		Labels:    []string{"", "hx", "hy", "th"},
		MaxNumber: 5,
	})
	d.Sentences[1] = model.Sentence{1}
	d.Sentences[2] = model.Sentence{2}
	d.Sentences[3] = model.Sentence{1, 2, 3}
	d.Assertions[3] = &model.Assertion{Valid: true, Thesis: 3, EssHyps: []int{1}, FloatHyps: []int{2}, Number: 5}
	d.ProofTrees[3] = &model.ProofTree{Label: 3, Number: 5, Essential: true, Sentence: model.Sentence{1, 2, 3},
		Children: []*model.ProofTree{{Label: 1, Number: 1, Essential: true, Sentence: model.Sentence{1}}}}
	return d
}

// countingSource counts lookups and can fail one sentence token.
type countingSource struct {
	Source
	calls   atomic.Int32
	failTok int
}

func (c *countingSource) Sentence(ctx context.Context, tok int) (model.Sentence, error) {
	c.calls.Add(1)
	if tok == c.failTok {
		return nil, errors.New("backend down")
	}
	return c.Source.Sentence(ctx, tok)
}

func (c *countingSource) Assertion(ctx context.Context, tok int) (*model.Assertion, error) {
	c.calls.Add(1)
	return c.Source.Assertion(ctx, tok)
}

func (c *countingSource) ProofTree(ctx context.Context, tok int) (*model.ProofTree, error) {
	c.calls.Add(1)
	return c.Source.ProofTree(ctx, tok)
}

func TestDumpRoundTripThroughFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "demo.json")
	require.NoError(t, WriteDump(path, demoDump()))

	src, err := OpenFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, src.Path())

	ctx := context.Background()
	c, err := src.Context(ctx)
	require.NoError(t, err)
	assert.Equal(t, "demo", c.Name)

	s, err := src.Sentence(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, model.Sentence{1, 2, 3}, s)

	_, err = src.Sentence(ctx, 9)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = src.Assertion(ctx, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = src.ProofTree(ctx, 1)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestReadDumpRejectsMissingContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, WriteDump(path, &Dump{}))
	_, err := ReadDump(path)
	assert.Error(t, err)

	_, err = ReadDump(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadAssertionView(t *testing.T) {
	src := &countingSource{Source: NewFileSource(demoDump())}
	view, err := LoadAssertionView(context.Background(), src, 3)
	require.NoError(t, err)

	assert.Equal(t, model.Sentence{1, 2, 3}, view.Thesis)
	assert.Equal(t, []model.Sentence{{1}}, view.EssHyps)
	assert.Equal(t, []model.Sentence{{2}}, view.FloatHyps)
	require.NotNil(t, view.ProofTree)
	assert.Equal(t, 5, view.ProofTree.Number)
	assert.Equal(t, int32(5), src.calls.Load(), "assertion, thesis, proof tree and two hypotheses")
}

func TestLoadAssertionViewPropagatesFailure(t *testing.T) {
	src := &countingSource{Source: NewFileSource(demoDump()), failTok: 2}
	_, err := LoadAssertionView(context.Background(), src, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch hypothesis 2")

	_, err = LoadAssertionView(context.Background(), src, 99)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLoadByLabel(t *testing.T) {
	ctx := context.Background()
	c, view, err := LoadByLabel(ctx, NewFileSource(demoDump()), "th")
	require.NoError(t, err)
	assert.Equal(t, "demo", c.Name)
	assert.Equal(t, 3, view.LabelTok)

	_, _, err = LoadByLabel(ctx, NewFileSource(demoDump()), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))

	unloaded := NewDump(&model.Context{Name: "empty", Status: model.StatusUnloaded})
	_, _, err = LoadByLabel(ctx, NewFileSource(unloaded), "th")
	assert.True(t, errors.Is(err, ErrNotLoaded))
}

func TestSnapshotServesSameView(t *testing.T) {
	ctx := context.Background()
	d, err := Snapshot(ctx, NewFileSource(demoDump()), []int{3})
	require.NoError(t, err)

	view, err := LoadAssertionView(ctx, NewFileSource(d), 3)
	require.NoError(t, err)
	assert.Equal(t, model.Sentence{1, 2, 3}, view.Thesis)
	assert.Len(t, d.Sentences, 3)
}

func TestCacheReadThrough(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{Source: NewFileSource(demoDump())}
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache", "pv.db"), src, "demo", nil)
	require.NoError(t, err)
	defer cache.Close()

	for i := 0; i < 3; i++ {
		s, err := cache.Sentence(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, model.Sentence{1, 2, 3}, s)
	}
	assert.Equal(t, int32(1), src.calls.Load())

	pt, err := cache.ProofTree(ctx, 3)
	require.NoError(t, err)
	_, err = cache.ProofTree(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, pt.Children, 1)
	assert.Equal(t, int32(2), src.calls.Load())

	n, err := cache.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, cache.Purge(ctx))
	n, err = cache.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{Source: NewFileSource(demoDump())}
	cache, err := OpenCache(":memory:", src, "demo", nil)
	require.NoError(t, err)
	defer cache.Close()

	_, err = cache.Assertion(ctx, 42)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = cache.Assertion(ctx, 42)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCacheScopesAreIsolated(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pv.db")
	srcA := &countingSource{Source: NewFileSource(demoDump())}
	a, err := OpenCache(path, srcA, "a", nil)
	require.NoError(t, err)
	_, err = a.Sentence(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	srcB := &countingSource{Source: NewFileSource(demoDump())}
	b, err := OpenCache(path, srcB, "b", nil)
	require.NoError(t, err)
	defer b.Close()
	_, err = b.Sentence(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srcB.calls.Load())
}

func TestCacheServesConcurrentViews(t *testing.T) {
	src := &countingSource{Source: NewFileSource(demoDump())}
	cache, err := OpenCache(":memory:", src, "demo", nil)
	require.NoError(t, err)
	defer cache.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := LoadAssertionView(context.Background(), cache, 3)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}
