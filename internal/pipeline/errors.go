package pipeline

import "fmt"

// #region kind
// Kind classifies why an invocation did not complete its action.
type Kind string

const (
	LowConfidence           Kind = "LowConfidence"
	CapabilityNotRegistered Kind = "CapabilityNotRegistered"
	SlotValidationFailure   Kind = "SlotValidationFailure"
	ConfirmationDenied      Kind = "ConfirmationDenied"
	ConfirmationTimedOut    Kind = "ConfirmationTimedOut"
	HandlerExecutionFailure Kind = "HandlerExecutionFailure"
	AuditSinkUnavailable    Kind = "AuditSinkUnavailable"
)

// #endregion kind

// #region refusal
// Refusal is a terminal outcome for one invocation. Err, when set, is the
// component error behind it.
type Refusal struct {
	Kind   Kind
	Reason string
	Err    error
}

func (r *Refusal) Error() string {
	return fmt.Sprintf("%s: %s", r.Kind, r.Reason)
}

func (r *Refusal) Unwrap() error { return r.Err }

func refuse(kind Kind, reason string, err error) *Refusal {
	return &Refusal{Kind: kind, Reason: reason, Err: err}
}

// #endregion refusal
