package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mayur256/ai-assistant/internal/audit"
	"github.com/mayur256/ai-assistant/internal/capability"
	"github.com/mayur256/ai-assistant/internal/classifier"
	"github.com/mayur256/ai-assistant/internal/dispatch"
	"github.com/mayur256/ai-assistant/internal/embed"
	"github.com/mayur256/ai-assistant/internal/gate"
	"github.com/mayur256/ai-assistant/internal/intent"
)

// #region fixtures

type recordingRunner struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingRunner) record(name string, args []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, strings.Join(append([]string{name}, args...), " "))
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.record(name, args)
	return nil, nil
}

func (r *recordingRunner) Start(name string, args ...string) error {
	r.record(name, args)
	return nil
}

func (r *recordingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// recordingConfirmer answers with a fixed reply and remembers prompts.
type recordingConfirmer struct {
	reply   func(ctx context.Context) (bool, error)
	prompts atomic.Int32
}

func (c *recordingConfirmer) Confirm(ctx context.Context, _ gate.Request) (bool, error) {
	c.prompts.Add(1)
	return c.reply(ctx)
}

func replyWith(ok bool) *recordingConfirmer {
	return &recordingConfirmer{reply: func(context.Context) (bool, error) { return ok, nil }}
}

type harness struct {
	p         *Pipeline
	runner    *recordingRunner
	confirmer *recordingConfirmer
	sink      *audit.MemorySink
}

type stubClassifier struct{ res intent.Result }

func (s stubClassifier) Classify(context.Context, string) intent.Result { return s.res }

func newHarness(t *testing.T, confirmer *recordingConfirmer, cls Classifier, gateCfg gate.GateConfig) *harness {
	t.Helper()
	if cls == nil {
		lex := classifier.DefaultLexicon()
		sem, err := classifier.NewSemanticMatcher(context.Background(), lex, embed.NewHashEmbedder(256))
		require.NoError(t, err)
		cls = classifier.NewArbiter(classifier.NewRuleMatcher(lex), sem, lex, classifier.DefaultConfig())
	}
	reg, err := capability.Load("")
	require.NoError(t, err)

	runner := &recordingRunner{}
	d, err := dispatch.New(dispatch.Builtins(runner, dispatch.DefaultBuiltinConfig()), dispatch.DefaultConfig())
	require.NoError(t, err)

	sink := audit.NewMemorySink()
	log, err := audit.New(context.Background(), sink, audit.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	p, err := New(Deps{
		Classifier: cls,
		Registry:   reg,
		Gate:       gate.NewGate(gateCfg, confirmer),
		Dispatcher: d,
		Audit:      log,
	})
	require.NoError(t, err)
	return &harness{p: p, runner: runner, confirmer: confirmer, sink: sink}
}

func (h *harness) records(t *testing.T) []audit.Record {
	t.Helper()
	rs, err := h.sink.List(context.Background(), 0)
	require.NoError(t, err)
	return rs
}

// #endregion fixtures

func TestOpenFirefox(t *testing.T) {
	h := newHarness(t, replyWith(false), nil, gate.DefaultGateConfig())
	resp := h.p.Handle(context.Background(), "open firefox")

	assert.Equal(t, intent.OpenApp, resp.Result.Intent)
	assert.GreaterOrEqual(t, resp.Result.Confidence, 0.75)
	assert.Equal(t, map[string]string{"app_name": "firefox"}, resp.Result.Slots)
	assert.True(t, resp.Execution.Success)
	assert.NoError(t, resp.Err)
	assert.Equal(t, gate.StateAuthorized, resp.Decision.State)
	assert.Zero(t, h.confirmer.prompts.Load())
	assert.Equal(t, []string{"firefox"}, h.runner.calls)

	rs := h.records(t)
	require.Len(t, rs, 1)
	assert.True(t, rs[0].Success)
	assert.Equal(t, "app.open", rs[0].ActionTaken)
	assert.Equal(t, "LOW", rs[0].RiskTier)
	assert.Empty(t, rs[0].ConfirmationOutcome)
}

func TestSearchPythonDocs(t *testing.T) {
	h := newHarness(t, replyWith(false), nil, gate.DefaultGateConfig())
	resp := h.p.Handle(context.Background(), "search python docs")

	assert.Equal(t, intent.SearchWeb, resp.Result.Intent)
	assert.Equal(t, map[string]string{"query": "python docs"}, resp.Result.Slots)
	assert.True(t, resp.Execution.Success)
	assert.Zero(t, h.confirmer.prompts.Load())
	require.Equal(t, 1, h.runner.count())
	assert.Contains(t, h.runner.calls[0], "q=python+docs")
}

func TestWhatTimeIsIt(t *testing.T) {
	h := newHarness(t, replyWith(false), nil, gate.DefaultGateConfig())
	resp := h.p.Handle(context.Background(), "what time is it")

	assert.Equal(t, intent.GetTime, resp.Result.Intent)
	assert.Equal(t, 1.0, resp.Result.Confidence)
	assert.True(t, resp.Execution.Success)
	assert.True(t, strings.HasPrefix(resp.Speech, "It's "))
}

func TestHelloThereIsUnknown(t *testing.T) {
	h := newHarness(t, replyWith(true), nil, gate.DefaultGateConfig())
	resp := h.p.Handle(context.Background(), "hello there")

	assert.Equal(t, intent.Unknown, resp.Result.Intent)
	assert.Equal(t, 0.0, resp.Result.Confidence)
	assert.False(t, resp.Execution.Success)
	ref, ok := resp.Refusal()
	require.True(t, ok)
	assert.Equal(t, LowConfidence, ref.Kind)
	assert.Zero(t, h.runner.count())

	rs := h.records(t)
	require.Len(t, rs, 1)
	assert.False(t, rs[0].Success)
	assert.Empty(t, rs[0].ActionTaken)
	assert.Equal(t, "LowConfidence", rs[0].ErrorKind)
}

func TestOutOfDomainIsUnknown(t *testing.T) {
	for _, text := range []string{"what is the weather", "weather", "set an alarm", "who is the president", "order a pizza"} {
		t.Run(text, func(t *testing.T) {
			h := newHarness(t, replyWith(true), nil, gate.DefaultGateConfig())
			resp := h.p.Handle(context.Background(), text)

			assert.Equal(t, intent.Unknown, resp.Result.Intent)
			assert.Equal(t, 0.0, resp.Result.Confidence)
			ref, ok := resp.Refusal()
			require.True(t, ok)
			assert.Equal(t, LowConfidence, ref.Kind)
			assert.Zero(t, h.runner.count(), "nothing may be dispatched")
			assert.Zero(t, h.confirmer.prompts.Load())

			rs := h.records(t)
			require.Len(t, rs, 1)
			assert.Equal(t, "UNKNOWN", rs[0].Intent)
			assert.Empty(t, rs[0].ActionTaken)
		})
	}
}

func TestPlayOnYoutube(t *testing.T) {
	h := newHarness(t, replyWith(false), nil, gate.DefaultGateConfig())
	resp := h.p.Handle(context.Background(), "play despacito on youtube")

	assert.Equal(t, intent.PlayYoutube, resp.Result.Intent)
	assert.Equal(t, map[string]string{"query": "despacito"}, resp.Result.Slots)
	assert.True(t, resp.Execution.Success)
	assert.Equal(t, "Playing despacito on YouTube.", resp.Speech)
	assert.Zero(t, h.confirmer.prompts.Load(), "MEDIUM risk needs no confirmation")
	assert.Equal(t, []string{"brave-browser --new-window https://www.youtube.com/results?search_query=despacito"}, h.runner.calls)

	rs := h.records(t)
	require.Len(t, rs, 1)
	assert.Equal(t, "video.play", rs[0].ActionTaken)
	assert.Equal(t, "MEDIUM", rs[0].RiskTier)
}

func TestSearchYoutubeIsNotWebSearch(t *testing.T) {
	h := newHarness(t, replyWith(false), nil, gate.DefaultGateConfig())
	resp := h.p.Handle(context.Background(), "search youtube for cats")

	assert.Equal(t, intent.SearchYoutube, resp.Result.Intent)
	assert.Equal(t, map[string]string{"query": "cats"}, resp.Result.Slots)
	require.Equal(t, 1, h.runner.count())
	assert.Contains(t, h.runner.calls[0], "youtube.com/results?search_query=cats")
}

func TestOpenFirefoxWithComma(t *testing.T) {
	h := newHarness(t, replyWith(false), nil, gate.DefaultGateConfig())
	resp := h.p.Handle(context.Background(), "open firefox, please")

	assert.Equal(t, intent.OpenApp, resp.Result.Intent)
	assert.Equal(t, map[string]string{"app_name": "firefox"}, resp.Result.Slots)
	assert.True(t, resp.Execution.Success, resp.Execution.Message)
	assert.Equal(t, []string{"firefox"}, h.runner.calls)
}

func TestCloseFirefoxDenied(t *testing.T) {
	h := newHarness(t, replyWith(false), nil, gate.DefaultGateConfig())
	resp := h.p.Handle(context.Background(), "close firefox")

	assert.Equal(t, intent.CloseApp, resp.Result.Intent)
	assert.Equal(t, []gate.State{gate.StatePending, gate.StateDenied}, resp.Decision.Path)
	assert.False(t, resp.Execution.Success)
	assert.Equal(t, "confirmation denied", resp.Execution.Message)
	assert.Equal(t, int32(1), h.confirmer.prompts.Load())
	assert.Zero(t, h.runner.count(), "dispatch must not run")

	rs := h.records(t)
	require.Len(t, rs, 1)
	assert.Equal(t, "DENIED", rs[0].ConfirmationOutcome)
	assert.Equal(t, "HIGH", rs[0].RiskTier)
	assert.Empty(t, rs[0].ActionTaken)
}

func TestCloseFirefoxConfirmed(t *testing.T) {
	h := newHarness(t, replyWith(true), nil, gate.DefaultGateConfig())
	resp := h.p.Handle(context.Background(), "close firefox")

	assert.True(t, resp.Execution.Success)
	assert.Equal(t, gate.StateConfirmed, resp.Decision.State)
	assert.Equal(t, []string{"pkill -x firefox"}, h.runner.calls)
	assert.Equal(t, "CONFIRMED", h.records(t)[0].ConfirmationOutcome)
}

func TestCloseFirefoxTimesOut(t *testing.T) {
	silent := &recordingConfirmer{reply: func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}}
	h := newHarness(t, silent, nil, gate.GateConfig{Timeout: 20 * time.Millisecond})
	resp := h.p.Handle(context.Background(), "close firefox")

	assert.False(t, resp.Execution.Success)
	assert.Equal(t, "confirmation timed out", resp.Execution.Message)
	ref, ok := resp.Refusal()
	require.True(t, ok)
	assert.Equal(t, ConfirmationTimedOut, ref.Kind)
	assert.Zero(t, h.runner.count())
	assert.Equal(t, "TIMED_OUT", h.records(t)[0].ConfirmationOutcome)
}

func TestHostileSlotRefusedRegardlessOfConfidence(t *testing.T) {
	for _, conf := range []float64{1.0, 0.5} {
		stub := stubClassifier{res: intent.NewResult(intent.OpenApp, conf, map[string]string{"app_name": "rm -rf /"}, "open rm -rf /", intent.SourceRule)}
		h := newHarness(t, replyWith(true), stub, gate.DefaultGateConfig())
		resp := h.p.Handle(context.Background(), "open rm -rf /")

		ref, ok := resp.Refusal()
		require.True(t, ok)
		assert.Equal(t, SlotValidationFailure, ref.Kind)
		var se *capability.SlotError
		assert.True(t, errors.As(resp.Err, &se))
		assert.Zero(t, h.runner.count())
		assert.Zero(t, h.confirmer.prompts.Load())
		assert.Len(t, h.records(t), 1)
	}

	h := newHarness(t, replyWith(true), nil, gate.DefaultGateConfig())
	resp := h.p.Handle(context.Background(), "open rm -rf /")
	assert.Equal(t, intent.OpenApp, resp.Result.Intent)
	ref, ok := resp.Refusal()
	require.True(t, ok)
	assert.Equal(t, SlotValidationFailure, ref.Kind)
	assert.Zero(t, h.runner.count())
}

func TestUnregisteredIntentRefused(t *testing.T) {
	stub := stubClassifier{res: intent.NewResult("GET_WEATHER", 1, nil, "weather", intent.SourceRule)}
	h := newHarness(t, replyWith(true), stub, gate.DefaultGateConfig())
	resp := h.p.Handle(context.Background(), "weather")

	ref, ok := resp.Refusal()
	require.True(t, ok)
	assert.Equal(t, CapabilityNotRegistered, ref.Kind)
	assert.True(t, errors.Is(resp.Err, capability.ErrNotRegistered))
	assert.Zero(t, h.runner.count())
}

func TestAuditFailureDoesNotHideOutcome(t *testing.T) {
	h := newHarness(t, replyWith(false), nil, gate.DefaultGateConfig())
	h.sink.SetError(errors.New("disk full"))

	resp := h.p.Handle(context.Background(), "open firefox")
	assert.True(t, resp.Execution.Success)
	require.Error(t, resp.AuditErr)
	assert.True(t, errors.Is(resp.AuditErr, audit.ErrSinkUnavailable))
	var ref *Refusal
	require.True(t, errors.As(resp.AuditErr, &ref))
	assert.Equal(t, AuditSinkUnavailable, ref.Kind)
}

func TestNewRequiresEveryDependency(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

var vocabulary = []string{
	"open", "close", "firefox", "chrome", "search", "for", "python", "what", "time", "is", "it",
	"play", "music", "stop", "date", "today", "hello", "there", "system", "info", "rm", "-rf",
	"/", "please", "kill", "terminal", "look", "up", "banana",
}

func genUtterance() gopter.Gen {
	return gen.SliceOfN(5, gen.IntRange(0, len(vocabulary)-1)).Map(func(idx []int) string {
		words := make([]string, len(idx))
		for i, j := range idx {
			words[i] = vocabulary[j]
		}
		return strings.Join(words, " ")
	})
}

func TestPipelineProperties(t *testing.T) {
	h := newHarness(t, replyWith(false), nil, gate.DefaultGateConfig())

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 150
	properties := gopter.NewProperties(parameters)

	properties.Property("one audit record per invocation and no dispatch on refusal", prop.ForAll(
		func(text string) bool {
			recordsBefore := len(h.records(t))
			callsBefore := h.runner.count()

			resp := h.p.Handle(context.Background(), text)

			if len(h.records(t)) != recordsBefore+1 {
				return false
			}
			ref, refused := resp.Refusal()
			dispatched := h.runner.count() > callsBefore
			if refused && ref.Kind != HandlerExecutionFailure && dispatched {
				return false
			}
			if resp.Result.Intent == intent.CloseApp && dispatched {
				return false
			}
			return resp.Result.Confidence >= 0 && resp.Result.Confidence <= 1
		},
		genUtterance(),
	))

	properties.TestingRun(t)
}
