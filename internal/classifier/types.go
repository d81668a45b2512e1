package classifier

// #region imports
import (
	"context"

	"github.com/mayur256/ai-assistant/internal/intent"
)

// #endregion

// #region match

// Match is a single matcher verdict before arbitration.
type Match struct {
	Intent     intent.Intent
	Confidence float64
}

// NoMatch is the zero-confidence UNKNOWN verdict.
var NoMatch = Match{Intent: intent.Unknown, Confidence: 0}

// #endregion

// #region matcher

// Matcher scores an utterance against the lexicon. RuleMatcher and
// SemanticMatcher are the only implementations; the Arbiter combines them.
type Matcher interface {
	Match(ctx context.Context, text string) (Match, error)
	Source() intent.Source
}

// #endregion

// #region config

// Config holds the arbitration thresholds.
type Config struct {
	HighConfidence float64 // rule fast-path threshold
	SemanticMin    float64 // minimum accepted semantic confidence
	Speculative    bool    // run the semantic matcher alongside the rule matcher
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		HighConfidence: 0.8,
		SemanticMin:    0.83,
		Speculative:    false,
	}
}

// #endregion
