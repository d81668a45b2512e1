package dispatch

import (
	"context"
	"time"

	"github.com/mayur256/ai-assistant/internal/capability"
)

// #region result
// ExecutionResult is the outcome of one dispatch. Message is user-facing.
type ExecutionResult struct {
	Success   bool          `json:"success"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	HandlerID string        `json:"handler_id,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// #endregion result

// #region handler
// Handler performs one kind of action. Params names every argument the
// handler accepts; Execute only ever sees those.
type Handler interface {
	Params() []string
	Execute(ctx context.Context, args capability.Args) (string, error)
}

// Func adapts a function and its parameter names to Handler.
type Func struct {
	Names []string
	Fn    func(ctx context.Context, args capability.Args) (string, error)
}

func (f Func) Params() []string { return f.Names }

func (f Func) Execute(ctx context.Context, args capability.Args) (string, error) {
	return f.Fn(ctx, args)
}

// #endregion handler

// #region runner
// Runner launches external programs with an argv list. No shell is involved.
type Runner interface {
	// Run waits for the program and returns its combined output.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches the program and returns without waiting.
	Start(name string, args ...string) error
}

// #endregion runner

// #region config
// Config bounds handler execution.
type Config struct {
	Timeout time.Duration
}

// DefaultConfig allows five seconds per handler.
func DefaultConfig() Config {
	return Config{Timeout: 5 * time.Second}
}

// #endregion config
