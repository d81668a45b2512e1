package eval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayur256/ai-assistant/internal/classifier"
	"github.com/mayur256/ai-assistant/internal/embed"
	"github.com/mayur256/ai-assistant/internal/intent"
)

type tableClassifier map[string]intent.Intent

func (t tableClassifier) Classify(_ context.Context, text string) intent.Result {
	if i, ok := t[text]; ok {
		return intent.NewResult(i, 1, nil, text, intent.SourceRule)
	}
	return intent.UnknownResult(text)
}

func TestRunTalliesAccuracy(t *testing.T) {
	cases := []Case{
		{Text: "open firefox", Intent: intent.OpenApp},
		{Text: "close firefox", Intent: intent.CloseApp},
		{Text: "what time is it", Intent: intent.GetTime},
		{Text: "hello", Intent: intent.Unknown},
	}
	c := tableClassifier{
		"open firefox":    intent.OpenApp,
		"close firefox":   intent.OpenApp,
		"what time is it": intent.GetTime,
	}

	r := Run(context.Background(), c, cases)

	if r.Total != 4 || r.Correct != 3 {
		t.Fatalf("expected 3/4 correct, got %d/%d", r.Correct, r.Total)
	}
	if r.Accuracy != 0.75 {
		t.Fatalf("expected accuracy 0.75, got %v", r.Accuracy)
	}
	if len(r.Misses) != 1 || r.Misses[0].Got != intent.OpenApp || r.Misses[0].Want != intent.CloseApp {
		t.Fatalf("unexpected misses: %+v", r.Misses)
	}
	if m := r.PerIntent[intent.CloseApp]; m.Recall != 0 || m.Total != 1 {
		t.Fatalf("unexpected CLOSE_APP metric: %+v", m)
	}
	if r.BySource[intent.SourceRule] != 3 || r.BySource[intent.SourceNone] != 1 {
		t.Fatalf("unexpected source counts: %+v", r.BySource)
	}
	if !r.Passed(0.7) || r.Passed(0.8) {
		t.Fatal("Passed threshold check wrong")
	}
}

func TestRunEmpty(t *testing.T) {
	r := Run(context.Background(), tableClassifier{}, nil)
	if r.Total != 0 || r.Accuracy != 0 {
		t.Fatalf("unexpected report for no cases: %+v", r)
	}
}

func TestParseCasesRejectsUnlabelled(t *testing.T) {
	if _, err := ParseCases([]byte("cases:\n  - {text: \"open firefox\"}\n")); err == nil {
		t.Fatal("expected error for case without intent")
	}
}

func TestDefaultCasesAgainstDefaultClassifier(t *testing.T) {
	cases := DefaultCases()
	if len(cases) < 10 {
		t.Fatalf("expected built-in cases, got %d", len(cases))
	}

	lex := classifier.DefaultLexicon()
	sem, err := classifier.NewSemanticMatcher(context.Background(), lex, embed.NewHashEmbedder(256))
	if err != nil {
		t.Fatal(err)
	}
	a := classifier.NewArbiter(classifier.NewRuleMatcher(lex), sem, lex, classifier.DefaultConfig())

	r := Run(context.Background(), a, cases)
	if !r.Passed(0.75) {
		t.Fatalf("accuracy %.2f below 0.75; misses: %+v", r.Accuracy, r.Misses)
	}
}

func TestDefaultCasesNeverExecuteOutOfDomain(t *testing.T) {
	lex := classifier.DefaultLexicon()
	sem, err := classifier.NewSemanticMatcher(context.Background(), lex, embed.NewHashEmbedder(256))
	require.NoError(t, err)
	a := classifier.NewArbiter(classifier.NewRuleMatcher(lex), sem, lex, classifier.DefaultConfig())

	r := Run(context.Background(), a, DefaultCases())
	unknown := r.PerIntent[intent.Unknown]
	require.GreaterOrEqual(t, unknown.Total, 10, "out-of-domain negatives are part of the built-in set")
	assert.Equal(t, unknown.Total, unknown.Correct)
	for _, m := range r.Misses {
		assert.NotEqual(t, intent.Unknown, m.Want, "%q classified as %s (%.3f via %s)", m.Text, m.Got, m.Confidence, m.Source)
	}

	for _, in := range []intent.Intent{intent.PlayYoutube, intent.SearchYoutube} {
		m := r.PerIntent[in]
		assert.Positive(t, m.Total, in)
		assert.Equal(t, m.Total, m.Correct, in)
	}
}
