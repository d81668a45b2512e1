package gate

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// #region gate
// Gate holds high-risk actions until a Confirmer approves them.
type Gate struct {
	config    GateConfig
	confirmer Confirmer
	log       zerolog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the gate's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gate) { g.log = l.With().Str("component", "gate").Logger() }
}

// NewGate creates a gate. A nil confirmer denies every gated request.
func NewGate(config GateConfig, confirmer Confirmer, opts ...Option) *Gate {
	if config.Timeout <= 0 {
		config.Timeout = DefaultGateConfig().Timeout
	}
	g := &Gate{config: config, confirmer: confirmer, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize decides req. Requests that need no confirmation pass straight
// through; the rest get exactly one answer from the confirmer within the
// configured timeout.
func (g *Gate) Authorize(ctx context.Context, req Request) Decision {
	start := time.Now()
	if !req.NeedsConfirmation() {
		return Decision{
			RequestID: req.ID,
			Path:      []State{StateNotRequired, StateAuthorized},
			State:     StateAuthorized,
			Reason:    "confirmation not required",
		}
	}

	d := Decision{RequestID: req.ID, Path: []State{StatePending}}
	finish := func(s State, reason string) Decision {
		d.Path = append(d.Path, s)
		d.State = s
		d.Reason = reason
		d.Elapsed = time.Since(start)
		g.log.Info().
			Str("request_id", req.ID).
			Str("intent", string(req.Intent)).
			Str("state", string(s)).
			Str("reason", reason).
			Dur("elapsed", d.Elapsed).
			Msg("confirmation settled")
		return d
	}

	if g.confirmer == nil {
		return finish(StateDenied, "no confirmation channel")
	}

	cctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	type answer struct {
		ok  bool
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		ok, err := g.confirmer.Confirm(cctx, req)
		ch <- answer{ok: ok, err: err}
	}()

	select {
	case a := <-ch:
		switch {
		case a.err == nil && a.ok:
			return finish(StateConfirmed, "confirmed by user")
		case a.err == nil:
			return finish(StateDenied, "declined by user")
		case errors.Is(a.err, context.DeadlineExceeded) && ctx.Err() == nil:
			return finish(StateTimedOut, "no answer within "+g.config.Timeout.String())
		default:
			return finish(StateDenied, "confirmation failed: "+a.err.Error())
		}
	case <-cctx.Done():
		if ctx.Err() != nil {
			return finish(StateDenied, "confirmation cancelled")
		}
		return finish(StateTimedOut, "no answer within "+g.config.Timeout.String())
	}
}

// #endregion gate
