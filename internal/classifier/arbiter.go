package classifier

// #region imports
import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mayur256/ai-assistant/internal/intent"
)

// #endregion

// #region arbiter

// Arbiter combines the rule and semantic matchers under fixed thresholds.
type Arbiter struct {
	rule     Matcher
	semantic Matcher
	lex      *Lexicon
	cfg      Config
	accept   float64 // effective semantic minimum
	log      zerolog.Logger
}

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithLogger sets the arbiter's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Arbiter) { a.log = l }
}

// NewArbiter creates an arbiter. semantic may be nil, in which case anything
// below the rule fast path resolves to UNKNOWN. A semantic verdict must clear
// the higher of cfg.SemanticMin and the embedder's own floor.
func NewArbiter(rule *RuleMatcher, semantic *SemanticMatcher, lex *Lexicon, cfg Config, opts ...Option) *Arbiter {
	a := &Arbiter{
		rule:   rule,
		lex:    lex,
		cfg:    cfg,
		accept: cfg.SemanticMin,
		log:    zerolog.Nop(),
	}
	if semantic != nil {
		a.semantic = semantic
		a.accept = max(cfg.SemanticMin, semantic.MinConfidence())
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Config returns the configured thresholds.
func (a *Arbiter) Config() Config { return a.cfg }

// SemanticMin returns the semantic acceptance threshold actually applied.
func (a *Arbiter) SemanticMin() float64 { return a.accept }

// Classify turns an utterance into a Result. Anything that clears neither
// threshold becomes UNKNOWN with zero confidence.
func (a *Arbiter) Classify(ctx context.Context, text string) intent.Result {
	norm := Normalize(text)
	if norm == "" {
		return intent.UnknownResult(text)
	}
	if a.cfg.Speculative && a.semantic != nil {
		return a.classifySpeculative(ctx, text, norm)
	}

	rm, _ := a.rule.Match(ctx, norm)
	if a.fastPath(rm) {
		return a.result(rm, text, norm, intent.SourceRule)
	}
	if a.semantic == nil {
		return intent.UnknownResult(text)
	}

	sm, err := a.semantic.Match(ctx, norm)
	if err != nil {
		a.log.Warn().Err(err).Str("utterance", norm).Msg("semantic matcher failed, falling back to unknown")
		return intent.UnknownResult(text)
	}
	return a.settle(rm, sm, text, norm)
}

// classifySpeculative runs both matchers at once and cancels the semantic
// one as soon as the rule matcher clears the fast path.
func (a *Arbiter) classifySpeculative(ctx context.Context, text, norm string) intent.Result {
	semCtx, cancelSem := context.WithCancel(ctx)
	defer cancelSem()

	var rm, sm Match
	var semErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rm, _ = a.rule.Match(gctx, norm)
		if a.fastPath(rm) {
			cancelSem()
		}
		return nil
	})
	g.Go(func() error {
		sm, semErr = a.semantic.Match(semCtx, norm)
		return nil
	})
	_ = g.Wait()

	if a.fastPath(rm) {
		return a.result(rm, text, norm, intent.SourceRule)
	}
	if semErr != nil {
		a.log.Warn().Err(semErr).Str("utterance", norm).Msg("semantic matcher failed, falling back to unknown")
		return intent.UnknownResult(text)
	}
	return a.settle(rm, sm, text, norm)
}

func (a *Arbiter) fastPath(m Match) bool {
	return m.Intent != intent.Unknown && m.Confidence >= a.cfg.HighConfidence
}

func (a *Arbiter) settle(rm, sm Match, text, norm string) intent.Result {
	if sm.Intent != intent.Unknown && sm.Confidence >= a.accept {
		return a.result(sm, text, norm, intent.SourceSemantic)
	}
	a.log.Debug().
		Str("rule_intent", string(rm.Intent)).Float64("rule_conf", rm.Confidence).
		Str("semantic_intent", string(sm.Intent)).Float64("semantic_conf", sm.Confidence).
		Float64("semantic_min", a.accept).
		Msg("low confidence")
	return intent.UnknownResult(text)
}

func (a *Arbiter) result(m Match, text, norm string, src intent.Source) intent.Result {
	return intent.NewResult(m.Intent, m.Confidence, a.lex.ExtractSlots(m.Intent, norm), text, src)
}

// #endregion
