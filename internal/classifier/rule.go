package classifier

// #region imports
import (
	"context"
	"strings"

	"github.com/mayur256/ai-assistant/internal/intent"
)

// #endregion

// #region rule-matcher

// RuleMatcher scores cue-group overlap. Pure and deterministic.
type RuleMatcher struct {
	lex *Lexicon
}

// NewRuleMatcher creates a rule matcher over lex.
func NewRuleMatcher(lex *Lexicon) *RuleMatcher {
	return &RuleMatcher{lex: lex}
}

// Source implements Matcher.
func (m *RuleMatcher) Source() intent.Source { return intent.SourceRule }

// Match implements Matcher. It never returns an error.
func (m *RuleMatcher) Match(_ context.Context, text string) (Match, error) {
	return m.Score(text), nil
}

// Score returns the best intent and its confidence. Each cue group is worth
// one unit: a word-boundary hit scores 1, a substring-only hit scores 0.5.
// Confidence is credit over group count; ties go to declaration order.
func (m *RuleMatcher) Score(text string) Match {
	norm := Normalize(text)
	if norm == "" {
		return NoMatch
	}
	padded := " " + norm + " "

	best := NoMatch
	for _, e := range m.lex.entries {
		var credit float64
		for _, g := range e.Cues {
			credit += m.groupCredit(e, g, norm, padded)
		}
		score := credit / float64(len(e.Cues))
		if score > best.Confidence {
			best = Match{Intent: e.Intent, Confidence: score}
		}
	}
	return best
}

func (m *RuleMatcher) groupCredit(e Entry, g CueGroup, norm, padded string) float64 {
	if g.Slot != "" {
		if e.Slot != nil && extractAfter(strings.Fields(norm), e.Slot) != "" {
			return 1
		}
		return 0
	}
	partial := false
	for _, w := range g.Words {
		if strings.Contains(padded, " "+w+" ") {
			return 1
		}
		if strings.Contains(norm, w) {
			partial = true
		}
	}
	if partial {
		return 0.5
	}
	return 0
}

// #endregion
