package dispatch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/mayur256/ai-assistant/internal/capability"
)

// #region dispatcher
// Dispatcher routes authorized actions to a fixed handler table.
type Dispatcher struct {
	handlers map[string]Handler
	config   Config
	log      zerolog.Logger
	now      func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l.With().Str("component", "dispatch").Logger() }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New builds a dispatcher over handlers. The table is copied and fixed.
func New(handlers map[string]Handler, config Config, opts ...Option) (*Dispatcher, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	d := &Dispatcher{
		handlers: make(map[string]Handler, len(handlers)),
		config:   config,
		log:      zerolog.Nop(),
		now:      time.Now,
	}
	for id, h := range handlers {
		if h == nil {
			return nil, fmt.Errorf("handler %s is nil", id)
		}
		d.handlers[id] = h
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Has reports whether a handler is registered under id.
func (d *Dispatcher) Has(id string) bool {
	_, ok := d.handlers[id]
	return ok
}

// Dispatch runs the handler named by auth. It never panics and never runs
// past the configured timeout. Anything short of a clean handler return is
// reported as a failure.
func (d *Dispatcher) Dispatch(ctx context.Context, auth capability.Authorization) ExecutionResult {
	start := d.now()
	fail := func(msg string) ExecutionResult {
		return ExecutionResult{Success: false, Message: msg, Timestamp: d.now(), HandlerID: auth.HandlerID(), Duration: d.now().Sub(start)}
	}

	if !auth.Valid() {
		return fail("action not authorized")
	}
	h, ok := d.handlers[auth.HandlerID()]
	if !ok {
		d.log.Warn().Str("handler_id", auth.HandlerID()).Msg("no handler registered")
		return fail("no handler for " + auth.HandlerID())
	}

	args := auth.Args()
	params := h.Params()
	for _, a := range args {
		if !slices.Contains(params, a.Name) {
			return fail(fmt.Sprintf("handler %s does not accept %s", auth.HandlerID(), a.Name))
		}
	}

	msg, err := d.run(ctx, h, args)
	res := ExecutionResult{Success: err == nil, Message: msg, Timestamp: d.now(), HandlerID: auth.HandlerID()}
	res.Duration = res.Timestamp.Sub(start)
	if err != nil {
		res.Message = err.Error()
		d.log.Warn().Err(err).Str("handler_id", auth.HandlerID()).Dur("duration", res.Duration).Msg("handler failed")
		return res
	}
	d.log.Debug().Str("handler_id", auth.HandlerID()).Dur("duration", res.Duration).Msg("handler succeeded")
	return res
}

// errTimedOut is reported when a handler overruns its deadline.
var errTimedOut = errors.New("timed out")

func (d *Dispatcher) run(ctx context.Context, h Handler, args capability.Args) (string, error) {
	hctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	type outcome struct {
		msg string
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("handler panicked: %v", r)}
			}
		}()
		msg, err := h.Execute(hctx, args)
		ch <- outcome{msg: msg, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", errTimedOut
		}
		return o.msg, o.err
	case <-hctx.Done():
		if ctx.Err() != nil {
			return "", fmt.Errorf("cancelled: %w", ctx.Err())
		}
		return "", errTimedOut
	}
}

// #endregion dispatcher
