package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mayur256/ai-assistant/internal/audit"
	"github.com/mayur256/ai-assistant/internal/gate"
	"github.com/mayur256/ai-assistant/internal/pipeline"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description  string `json:"description"`
	Capabilities string `json:"capabilities,omitempty"` // table path; empty uses the embedded default
	Cases        []Case `json:"cases"`
}

// Answer is the scripted reply to a confirmation prompt.
type Answer string

const (
	AnswerYes    Answer = "yes"
	AnswerNo     Answer = "no"
	AnswerSilent Answer = "silent" // let the prompt time out
)

// Case is one utterance and what replaying it must produce.
type Case struct {
	ID        string   `json:"id"`
	Utterance string   `json:"utterance"`
	Confirm   Answer   `json:"confirm,omitempty"` // empty behaves like no
	Expect    Expected `json:"expect"`
}

// Expected lists the checked outcome fields. Empty strings must match an
// empty outcome.
type Expected struct {
	Intent              string `json:"intent"`
	Success             bool   `json:"success"`
	ErrorKind           string `json:"error_kind,omitempty"`
	ActionTaken         string `json:"action_taken,omitempty"`
	ConfirmationOutcome string `json:"confirmation_outcome,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for i, c := range f.Cases {
		switch c.Confirm {
		case "", AnswerYes, AnswerNo, AnswerSilent:
		default:
			return nil, fmt.Errorf("fixture %s case %d: unknown confirm answer %q", path, i, c.Confirm)
		}
	}
	return &f, nil
}

// FromRecords turns audit records into a fixture that expects the same
// decisions again. Handler failures depend on the machine they ran on, so
// they are expected to succeed under the dry-run dispatcher.
func FromRecords(description string, records []audit.Record) Fixture {
	f := Fixture{Description: description, Cases: make([]Case, 0, len(records))}
	for _, r := range records {
		c := Case{
			ID:        r.ID,
			Utterance: r.Utterance,
			Confirm:   answerFor(r.ConfirmationOutcome),
			Expect: Expected{
				Intent:              r.Intent,
				Success:             r.Success,
				ErrorKind:           r.ErrorKind,
				ActionTaken:         r.ActionTaken,
				ConfirmationOutcome: r.ConfirmationOutcome,
			},
		}
		if r.ErrorKind == string(pipeline.HandlerExecutionFailure) {
			c.Expect.Success = true
			c.Expect.ErrorKind = ""
		}
		f.Cases = append(f.Cases, c)
	}
	return f
}

func answerFor(outcome string) Answer {
	switch gate.State(outcome) {
	case gate.StateConfirmed:
		return AnswerYes
	case gate.StateTimedOut:
		return AnswerSilent
	case gate.StateDenied:
		return AnswerNo
	}
	return ""
}

// #endregion fixture-loader
