package replay

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mayur256/ai-assistant/internal/audit"
	"github.com/mayur256/ai-assistant/internal/capability"
	"github.com/mayur256/ai-assistant/internal/dispatch"
	"github.com/mayur256/ai-assistant/internal/gate"
	"github.com/mayur256/ai-assistant/internal/pipeline"
)

// #region types

// Options supplies the decision components under test.
type Options struct {
	Classifier     pipeline.Classifier
	Registry       *capability.Registry
	ConfirmTimeout time.Duration // how long "silent" waits; default 50ms
}

// Result captures the outcome of replaying one case.
type Result struct {
	CaseID              string   `json:"case_id"`
	Intent              string   `json:"intent"`
	Success             bool     `json:"success"`
	ErrorKind           string   `json:"error_kind,omitempty"`
	ActionTaken         string   `json:"action_taken,omitempty"`
	ConfirmationOutcome string   `json:"confirmation_outcome,omitempty"`
	WouldRun            []string `json:"would_run,omitempty"`
	Mismatches          []string `json:"mismatches,omitempty"`
}

// Passed reports whether every expected field matched.
func (r Result) Passed() bool { return len(r.Mismatches) == 0 }

// Summary provides aggregate stats from a replay run.
type Summary struct {
	Total      int `json:"total"`
	Passed     int `json:"passed"`
	Failed     int `json:"failed"`
	Dispatched int `json:"dispatched"`
	Refused    int `json:"refused"`
}

// #endregion types

// #region dry-run

// DryRunner records the commands handlers would run without running them.
type DryRunner struct {
	mu   sync.Mutex
	cmds []string
}

func (d *DryRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	d.add(name, args)
	return nil, nil
}

func (d *DryRunner) Start(name string, args ...string) error {
	d.add(name, args)
	return nil
}

func (d *DryRunner) add(name string, args []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cmds = append(d.cmds, strings.Join(append([]string{name}, args...), " "))
}

// take returns and clears the recorded commands.
func (d *DryRunner) take() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.cmds
	d.cmds = nil
	return out
}

func scripted(a Answer) gate.Confirmer {
	return gate.ConfirmerFunc(func(ctx context.Context, _ gate.Request) (bool, error) {
		switch a {
		case AnswerYes:
			return true, nil
		case AnswerSilent:
			<-ctx.Done()
			return false, ctx.Err()
		}
		return false, nil
	})
}

// #endregion dry-run

// #region replay

// Replay runs every case through a full pipeline with scripted
// confirmations, a dry-run dispatcher and an in-memory audit log.
func Replay(ctx context.Context, f Fixture, opts Options) ([]Result, error) {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 50 * time.Millisecond
	}
	runner := &DryRunner{}
	d, err := dispatch.New(dispatch.Builtins(runner, dispatch.DefaultBuiltinConfig()), dispatch.DefaultConfig())
	if err != nil {
		return nil, err
	}
	log, err := audit.New(ctx, audit.NewMemorySink(), audit.DefaultConfig())
	if err != nil {
		return nil, err
	}
	defer log.Close()

	results := make([]Result, 0, len(f.Cases))
	for _, c := range f.Cases {
		p, err := pipeline.New(pipeline.Deps{
			Classifier: opts.Classifier,
			Registry:   opts.Registry,
			Gate:       gate.NewGate(gate.GateConfig{Timeout: opts.ConfirmTimeout}, scripted(c.Confirm)),
			Dispatcher: d,
			Audit:      log,
		})
		if err != nil {
			return nil, err
		}
		resp := p.Handle(ctx, c.Utterance)
		if resp.AuditErr != nil {
			return nil, fmt.Errorf("case %s: %w", c.ID, resp.AuditErr)
		}
		rec := resp.Audit
		r := Result{
			CaseID:              c.ID,
			Intent:              rec.Intent,
			Success:             rec.Success,
			ErrorKind:           rec.ErrorKind,
			ActionTaken:         rec.ActionTaken,
			ConfirmationOutcome: rec.ConfirmationOutcome,
			WouldRun:            runner.take(),
		}
		r.Mismatches = compare(c.Expect, r)
		results = append(results, r)
	}
	return results, nil
}

func compare(want Expected, got Result) []string {
	var m []string
	check := func(field, w, g string) {
		if w != g {
			m = append(m, fmt.Sprintf("%s: expected %q, got %q", field, w, g))
		}
	}
	check("intent", want.Intent, got.Intent)
	check("error_kind", want.ErrorKind, got.ErrorKind)
	check("action_taken", want.ActionTaken, got.ActionTaken)
	check("confirmation_outcome", want.ConfirmationOutcome, got.ConfirmationOutcome)
	if want.Success != got.Success {
		m = append(m, fmt.Sprintf("success: expected %t, got %t", want.Success, got.Success))
	}
	return m
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
		if r.ActionTaken != "" {
			s.Dispatched++
		} else {
			s.Refused++
		}
	}
	return s
}

// #endregion replay
