package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mayur256/ai-assistant/internal/audit"
	"github.com/mayur256/ai-assistant/internal/capability"
	"github.com/mayur256/ai-assistant/internal/dispatch"
	"github.com/mayur256/ai-assistant/internal/gate"
	"github.com/mayur256/ai-assistant/internal/intent"
	"github.com/mayur256/ai-assistant/internal/metrics"
)

// #region types
// Classifier turns a transcript into an intent. *classifier.Arbiter
// satisfies it.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Result
}

// Deps are the collaborators a Pipeline is built from.
type Deps struct {
	Classifier Classifier
	Registry   *capability.Registry
	Gate       *gate.Gate
	Dispatcher *dispatch.Dispatcher
	Audit      *audit.Log
}

// Response is everything one invocation produced.
type Response struct {
	InvocationID string
	Result       intent.Result
	Decision     gate.Decision // zero unless the gate was consulted
	Execution    dispatch.ExecutionResult
	Speech       string
	Err          error // *Refusal when the action did not complete
	Audit        audit.Record
	AuditErr     error
}

// Refusal returns the refusal behind r.Err, if any.
func (r Response) Refusal() (*Refusal, bool) {
	var ref *Refusal
	if errors.As(r.Err, &ref) {
		return ref, true
	}
	return nil, false
}

// #endregion types

// #region pipeline
// Pipeline runs classify, authorize, confirm, dispatch, and audit for each
// utterance. Safe for concurrent use.
type Pipeline struct {
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = l.With().Str("component", "pipeline").Logger() }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New checks that every collaborator is present.
func New(deps Deps, opts ...Option) (*Pipeline, error) {
	switch {
	case deps.Classifier == nil:
		return nil, errors.New("pipeline: classifier is required")
	case deps.Registry == nil:
		return nil, errors.New("pipeline: registry is required")
	case deps.Gate == nil:
		return nil, errors.New("pipeline: gate is required")
	case deps.Dispatcher == nil:
		return nil, errors.New("pipeline: dispatcher is required")
	case deps.Audit == nil:
		return nil, errors.New("pipeline: audit log is required")
	}
	p := &Pipeline{deps: deps, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Handle processes one transcript. It writes exactly one audit record and
// dispatches only with a registry authorization and, where required, a
// confirmed gate decision.
func (p *Pipeline) Handle(ctx context.Context, text string) Response {
	resp := Response{InvocationID: uuid.NewString()}
	rec := audit.Record{ID: resp.InvocationID, Utterance: text}

	resp.Result = p.deps.Classifier.Classify(ctx, text)
	metrics.Classifications.WithLabelValues(string(resp.Result.Source)).Inc()
	rec.Intent = string(resp.Result.Intent)
	rec.Confidence = resp.Result.Confidence
	rec.Source = string(resp.Result.Source)
	rec.Slots = intent.CopySlots(resp.Result.Slots)
	rec.PolicyVersion = p.deps.Registry.Policy()

	p.decide(ctx, &resp, &rec)

	rec.Timestamp = resp.Execution.Timestamp
	rec.Success = resp.Execution.Success
	rec.Message = resp.Execution.Message
	if ref, ok := resp.Refusal(); ok {
		rec.ErrorKind = string(ref.Kind)
	}

	stored, err := p.deps.Audit.Record(ctx, rec)
	resp.Audit = stored
	if err != nil {
		resp.AuditErr = refuse(AuditSinkUnavailable, "audit record went to fallback", err)
		p.log.Error().Err(err).Str("invocation_id", resp.InvocationID).Msg("audit sink unavailable")
	}

	outcome := "success"
	if ref, ok := resp.Refusal(); ok {
		outcome = string(ref.Kind)
	}
	metrics.Invocations.WithLabelValues(rec.Intent, outcome).Inc()
	p.log.Info().
		Str("invocation_id", resp.InvocationID).
		Str("intent", rec.Intent).
		Float64("confidence", rec.Confidence).
		Str("source", rec.Source).
		Str("outcome", outcome).
		Msg("utterance handled")
	return resp
}

func (p *Pipeline) decide(ctx context.Context, resp *Response, rec *audit.Record) {
	res := resp.Result
	if res.Intent == intent.Unknown {
		p.refuse(resp, refuse(LowConfidence, "intent not recognized", nil), "Sorry, I didn't understand that.")
		return
	}

	auth, err := p.deps.Registry.Authorize(res)
	var slotErr *capability.SlotError
	switch {
	case errors.As(err, &slotErr):
		p.refuse(resp, refuse(SlotValidationFailure, slotErr.Error(), err), "Sorry, I can't do that.")
		return
	case err != nil:
		p.refuse(resp, refuse(CapabilityNotRegistered, "capability not registered", err), "Sorry, I can't do that.")
		return
	}
	rec.RiskTier = string(auth.Descriptor().Risk)

	req := gate.NewRequest(auth)
	req.ID = resp.InvocationID
	resp.Decision = p.deps.Gate.Authorize(ctx, req)
	if req.NeedsConfirmation() {
		rec.ConfirmationOutcome = string(resp.Decision.State)
		metrics.Confirmations.WithLabelValues(string(resp.Decision.State)).Inc()
	}
	switch resp.Decision.State {
	case gate.StateAuthorized, gate.StateConfirmed:
	case gate.StateTimedOut:
		p.refuse(resp, refuse(ConfirmationTimedOut, "confirmation timed out", nil), "No answer, so I won't "+auth.Describe()+".")
		return
	default:
		p.refuse(resp, refuse(ConfirmationDenied, "confirmation denied", nil), "Okay, I won't "+auth.Describe()+".")
		return
	}

	rec.ActionTaken = auth.HandlerID()
	resp.Execution = p.deps.Dispatcher.Dispatch(ctx, auth)
	metrics.HandlerDuration.
		WithLabelValues(auth.HandlerID(), strconv.FormatBool(resp.Execution.Success)).
		Observe(resp.Execution.Duration.Seconds())
	if !resp.Execution.Success {
		resp.Err = refuse(HandlerExecutionFailure, resp.Execution.Message, nil)
		resp.Speech = fmt.Sprintf("Sorry, I couldn't %s.", auth.Describe())
		return
	}
	resp.Speech = resp.Execution.Message
}

// refuse settles resp without dispatching.
func (p *Pipeline) refuse(resp *Response, r *Refusal, speech string) {
	resp.Err = r
	resp.Speech = speech
	resp.Execution = dispatch.ExecutionResult{Success: false, Message: r.Reason, Timestamp: p.now()}
}

// #endregion pipeline
