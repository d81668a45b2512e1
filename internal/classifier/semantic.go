package classifier

// #region imports
import (
	"context"
	"fmt"

	"github.com/mayur256/ai-assistant/internal/embed"
	"github.com/mayur256/ai-assistant/internal/intent"
)

// #endregion

// #region semantic-matcher

// tieEpsilon is the similarity band treated as a tie.
const tieEpsilon = 1e-9

type anchor struct {
	intent intent.Intent
	phrase string
	vec    []float32
}

// SemanticMatcher scores utterances by cosine similarity to canonical
// phrases. Anchors are embedded once at construction and never modified.
type SemanticMatcher struct {
	embedder embed.Embedder
	floor    float64
	order    []intent.Intent
	anchors  map[intent.Intent][]anchor
}

// NewSemanticMatcher embeds every canonical phrase in lex.
func NewSemanticMatcher(ctx context.Context, lex *Lexicon, e embed.Embedder) (*SemanticMatcher, error) {
	m := &SemanticMatcher{
		embedder: e,
		floor:    embed.MinConfidence(e),
		order:    lex.Intents(),
		anchors:  make(map[intent.Intent][]anchor, len(lex.entries)),
	}

	var texts []string
	var owners []intent.Intent
	for _, en := range lex.entries {
		for _, p := range en.Phrases {
			texts = append(texts, Normalize(p))
			owners = append(owners, en.Intent)
		}
	}
	vecs, err := embed.Batch(ctx, e, texts, 8)
	if err != nil {
		return nil, fmt.Errorf("embed canonical phrases: %w", err)
	}
	for i, v := range vecs {
		m.anchors[owners[i]] = append(m.anchors[owners[i]], anchor{intent: owners[i], phrase: texts[i], vec: v})
	}
	return m, nil
}

// MinConfidence is the embedder's own acceptance floor, 0 if it has none.
func (m *SemanticMatcher) MinConfidence() float64 { return m.floor }

// Source implements Matcher.
func (m *SemanticMatcher) Source() intent.Source { return intent.SourceSemantic }

// Match implements Matcher. Each intent scores its best-matching phrase;
// the score is mapped from [-1,1] to [0,1].
func (m *SemanticMatcher) Match(ctx context.Context, text string) (Match, error) {
	norm := Normalize(text)
	if norm == "" {
		return NoMatch, nil
	}
	vec, err := m.embedder.Embed(ctx, norm)
	if err != nil {
		return NoMatch, fmt.Errorf("semantic match: %w", err)
	}

	best := NoMatch
	found := false
	for _, in := range m.order {
		s := m.bestSimilarity(vec, in)
		if !found || s > best.Confidence+tieEpsilon {
			best = Match{Intent: in, Confidence: s}
			found = true
		}
	}
	return best, nil
}

func (m *SemanticMatcher) bestSimilarity(vec []float32, in intent.Intent) float64 {
	best := 0.0
	for _, a := range m.anchors[in] {
		if s := embed.Unit(embed.Cosine(vec, a.vec)); s > best {
			best = s
		}
	}
	return best
}

// #endregion
