package embed

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	h := NewHashEmbedder(256)
	a, err := h.Embed(context.Background(), "open firefox")
	require.NoError(t, err)
	b, err := h.Embed(context.Background(), "open firefox")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 256)
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-6)
}

func TestHashEmbedderUnitLength(t *testing.T) {
	h := NewHashEmbedder(64)
	v, _ := h.Embed(context.Background(), "what time is it")
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-5)
}

func TestHashEmbedderSimilarity(t *testing.T) {
	h := NewHashEmbedder(256)
	ctx := context.Background()
	base, _ := h.Embed(ctx, "open firefox")
	near, _ := h.Embed(ctx, "please open firefox")
	far, _ := h.Embed(ctx, "what day is it")

	assert.Greater(t, Cosine(base, near), Cosine(base, far))
}

func TestHashEmbedderSkipsStopwords(t *testing.T) {
	h := NewHashEmbedder(256)
	ctx := context.Background()
	bare, _ := h.Embed(ctx, "weather")
	padded, _ := h.Embed(ctx, "what is the weather?")
	assert.Equal(t, bare, padded)

	// Only function words left: nothing to hash.
	empty, _ := h.Embed(ctx, "what is it")
	assert.Equal(t, 0.0, Cosine(empty, empty))
}

func TestHashEmbedderEmptyText(t *testing.T) {
	v, err := NewHashEmbedder(8).Embed(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, v, 16, "dimension is clamped to the minimum")
	assert.Equal(t, 0.0, Cosine(v, v))
}

func TestCosineEdgeCases(t *testing.T) {
	assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1}))
	assert.Equal(t, 0.0, Cosine(nil, nil))
	assert.InDelta(t, -1.0, Cosine([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, Unit(-1))
	assert.Equal(t, 1.0, Unit(1))
	assert.Equal(t, 0.5, Unit(0))
}

type countingEmbedder struct {
	Embedder
	calls atomic.Int64
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return c.Embedder.Embed(ctx, text)
}

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{Embedder: NewHashEmbedder(32)}
	c, err := NewCached(inner, 2)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := c.Embed(ctx, "alpha")
	require.NoError(t, err)
	first[0] = 42 // callers may not corrupt the cache
	second, err := c.Embed(ctx, "alpha")
	require.NoError(t, err)

	assert.Equal(t, int64(1), inner.calls.Load())
	assert.NotEqual(t, float32(42), second[0])

	_, _ = c.Embed(ctx, "b")
	_, _ = c.Embed(ctx, "c")
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "hash+lru", c.Name())
}

func TestMinConfidence(t *testing.T) {
	h := NewHashEmbedder(32)
	assert.Equal(t, HashMinConfidence, MinConfidence(h))

	c, err := NewCached(h, 4)
	require.NoError(t, err)
	assert.Equal(t, HashMinConfidence, MinConfidence(c), "the cache forwards the floor")

	bare, err := NewCached(&countingEmbedder{Embedder: h}, 4)
	require.NoError(t, err)
	assert.Equal(t, 0.0, MinConfidence(bare), "wrappers that hide the floor report none")
	assert.Equal(t, 0.0, MinConfidence(&Client{}), "the sidecar is calibrated by semantic_min alone")
}

func TestCachedEmbedderDoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{Embedder: NewHashEmbedder(32), err: errors.New("down")}
	c, err := NewCached(inner, 4)
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "a")
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestBatchPreservesOrder(t *testing.T) {
	h := NewHashEmbedder(32)
	texts := []string{"one", "two", "three", "four", "five"}
	vecs, err := Batch(context.Background(), h, texts, 2)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, text := range texts {
		want, _ := h.Embed(context.Background(), text)
		assert.Equal(t, want, vecs[i], text)
	}
}

func TestBatchPropagatesError(t *testing.T) {
	e := &countingEmbedder{Embedder: NewHashEmbedder(32), err: errors.New("down")}
	_, err := Batch(context.Background(), e, []string{"a", "b"}, 0)
	assert.ErrorContains(t, err, "down")
}
