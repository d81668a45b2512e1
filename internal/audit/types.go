package audit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// #region record
// Record is one append-only audit entry. Seq, PrevHash and Hash are
// assigned by the Log when the record reaches the sink.
type Record struct {
	ID                  string            `json:"id"`
	Seq                 int64             `json:"seq"`
	Timestamp           time.Time         `json:"timestamp"`
	Utterance           string            `json:"utterance"`
	Intent              string            `json:"intent"`
	Confidence          float64           `json:"confidence"`
	Source              string            `json:"source"`
	Slots               map[string]string `json:"slots"`
	RiskTier            string            `json:"risk_tier,omitempty"`
	ConfirmationOutcome string            `json:"confirmation_outcome,omitempty"`
	ActionTaken         string            `json:"action_taken,omitempty"`
	Success             bool              `json:"success"`
	Message             string            `json:"message"`
	ErrorKind           string            `json:"error_kind,omitempty"`
	PolicyVersion       string            `json:"policy_version,omitempty"`
	PrevHash            string            `json:"prev_hash"`
	Hash                string            `json:"hash"`
}

// #endregion record

// #region sink
// Sink persists records in order. Implementations never update or delete.
type Sink interface {
	Append(ctx context.Context, rec Record) error
	// LastHash returns the newest seq and hash, or 0 and "" when empty.
	LastHash(ctx context.Context) (int64, string, error)
	// List returns the newest limit records in ascending seq order.
	// limit <= 0 returns everything.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// #endregion sink

// #region errors
// ErrSinkUnavailable means the record went to the fallback channel only.
var ErrSinkUnavailable = errors.New("audit sink unavailable")

// ChainError reports the first broken link found by Verify.
type ChainError struct {
	Seq    int64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken at seq %d: %s", e.Seq, e.Reason)
}

// #endregion errors

// #region config
// Config bounds how long a caller waits on the writer.
type Config struct {
	WriteTimeout time.Duration
}

// DefaultConfig waits at most two seconds per record.
func DefaultConfig() Config {
	return Config{WriteTimeout: 2 * time.Second}
}

// #endregion config
