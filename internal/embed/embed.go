package embed

// #region imports
import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
)

// #endregion

// #region embedder

// Embedder turns text into a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Name() string
}

// Floored is implemented by embedders whose similarities need a higher
// acceptance bar than the configured semantic minimum.
type Floored interface {
	MinConfidence() float64
}

// MinConfidence returns e's acceptance floor, or 0 when it declares none.
func MinConfidence(e Embedder) float64 {
	if f, ok := e.(Floored); ok {
		return f.MinConfidence()
	}
	return 0
}

// #endregion

// #region batch

// Batch embeds texts concurrently, at most limit in flight. Output order
// matches input order.
func Batch(ctx context.Context, e Embedder, texts []string, limit int) ([][]float32, error) {
	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, t := range texts {
		g.Go(func() error {
			v, err := e.Embed(gctx, t)
			if err != nil {
				return fmt.Errorf("embed %q: %w", t, err)
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// #endregion

// #region similarity

// Cosine returns the cosine similarity of a and b in [-1,1].
// Mismatched lengths or zero vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// Unit maps a cosine similarity from [-1,1] to [0,1].
func Unit(s float64) float64 {
	return (s + 1) / 2
}

// #endregion
