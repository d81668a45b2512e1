package gate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mayur256/ai-assistant/internal/capability"
	"github.com/mayur256/ai-assistant/internal/intent"
)

// #region state
// State is a confirmation lifecycle state.
type State string

const (
	StateNotRequired State = "NOT_REQUIRED"
	StatePending     State = "PENDING"
	StateAuthorized  State = "AUTHORIZED"
	StateConfirmed   State = "CONFIRMED"
	StateDenied      State = "DENIED"
	StateTimedOut    State = "TIMED_OUT"
)

// Terminal reports whether s ends the lifecycle.
func (s State) Terminal() bool {
	switch s {
	case StateAuthorized, StateConfirmed, StateDenied, StateTimedOut:
		return true
	}
	return false
}

// #endregion state

// #region request
// Request is one gated action awaiting a decision.
type Request struct {
	ID                   string
	Intent               intent.Intent
	Risk                 capability.RiskTier
	RequiresConfirmation bool
	Prompt               string
}

// NewRequest derives a Request from an authorization. The prompt reads the
// action back to the user, e.g. "Do you want me to close firefox?".
func NewRequest(auth capability.Authorization) Request {
	desc := auth.Descriptor()
	return Request{
		ID:                   uuid.NewString(),
		Intent:               desc.Intent,
		Risk:                 desc.Risk,
		RequiresConfirmation: desc.RequiresConfirmation,
		Prompt:               "Do you want me to " + auth.Describe() + "?",
	}
}

// NeedsConfirmation is true for flagged requests and anything HIGH or above.
func (r Request) NeedsConfirmation() bool {
	return r.RequiresConfirmation || r.Risk.Rank() >= capability.RiskHigh.Rank()
}

// #endregion request

// #region decision
// Decision is the gate's verdict for one Request.
type Decision struct {
	RequestID string
	Path      []State // states visited, in order
	State     State   // terminal state
	Reason    string
	Elapsed   time.Duration
}

// Proceed is true only for AUTHORIZED and CONFIRMED.
func (d Decision) Proceed() bool {
	return d.State == StateAuthorized || d.State == StateConfirmed
}

// #endregion decision

// #region confirmer
// Confirmer asks the user to approve a request. It must return once ctx is
// done. A false answer or any error denies the request.
type Confirmer interface {
	Confirm(ctx context.Context, req Request) (bool, error)
}

// ConfirmerFunc adapts a function to Confirmer.
type ConfirmerFunc func(ctx context.Context, req Request) (bool, error)

func (f ConfirmerFunc) Confirm(ctx context.Context, req Request) (bool, error) { return f(ctx, req) }

// ErrUnrecognized means the reply was neither affirmative nor negative.
var ErrUnrecognized = errors.New("reply not recognized")

// #endregion confirmer

// #region gate-config
// GateConfig holds the confirmation window.
type GateConfig struct {
	Timeout time.Duration
}

// DefaultGateConfig waits ten seconds for an answer.
func DefaultGateConfig() GateConfig {
	return GateConfig{Timeout: 10 * time.Second}
}

// #endregion gate-config
