package embed

// #region imports
import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// #endregion

// #region cached

// Cached wraps an Embedder with an LRU keyed by exact text.
type Cached struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached wraps inner with a cache of the given size.
func NewCached(inner Embedder, size int) (*Cached, error) {
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding cache: %w", err)
	}
	return &Cached{inner: inner, cache: c}, nil
}

// Dimension implements Embedder.
func (c *Cached) Dimension() int { return c.inner.Dimension() }

// Name implements Embedder.
func (c *Cached) Name() string { return c.inner.Name() + "+lru" }

// MinConfidence implements Floored by forwarding to the wrapped embedder.
func (c *Cached) MinConfidence() float64 { return MinConfidence(c.inner) }

// Embed implements Embedder. Cached vectors are copied on the way out.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return append([]float32(nil), v...), nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, append([]float32(nil), v...))
	return v, nil
}

// Len reports the number of cached entries.
func (c *Cached) Len() int { return c.cache.Len() }

// #endregion
