package embed

// #region imports
import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// #endregion

// #region hash-embedder

// HashMinConfidence is the semantic acceptance floor for hash vectors. Short
// utterances share enough trigrams to score in the mid 0.8s against unrelated
// phrases, so anything below this is treated as a miss.
const HashMinConfidence = 0.9

// HashEmbedder is a deterministic, in-process embedder using signed feature
// hashing over word unigrams and character trigrams. Stopwords are skipped.
// Vectors are L2-normalized.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder creates a hash embedder of the given dimension (min 16).
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim < 16 {
		dim = 16
	}
	return &HashEmbedder{dim: dim}
}

// Dimension implements Embedder.
func (h *HashEmbedder) Dimension() int { return h.dim }

// Name implements Embedder.
func (h *HashEmbedder) Name() string { return "hash" }

// MinConfidence implements Floored.
func (h *HashEmbedder) MinConfidence() float64 { return HashMinConfidence }

// Embed implements Embedder. It never fails.
func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	for _, f := range features(text) {
		idx, sign := h.bucket(f.key)
		vec[idx] += sign * f.weight
	}
	normalize(vec)
	return vec, nil
}

type feature struct {
	key    string
	weight float32
}

func features(text string) []feature {
	words := strings.Fields(strings.ToLower(text))
	feats := make([]feature, 0, len(words)*6)
	for _, w := range words {
		w = strings.Trim(w, "?.!,;:\"'")
		if w == "" || stopwords[w] {
			continue
		}
		feats = append(feats, feature{key: "w:" + w, weight: 1})
		padded := []rune("#" + w + "#")
		for i := 0; i+3 <= len(padded); i++ {
			feats = append(feats, feature{key: "c:" + string(padded[i:i+3]), weight: 0.5})
		}
	}
	return feats
}

func (h *HashEmbedder) bucket(key string) (int, float32) {
	f := fnv.New64a()
	f.Write([]byte(key))
	sum := f.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(h.dim)), sign
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
}

// #endregion
