package audit

import (
	"context"
	"sync"
)

// #region memory-sink
// MemorySink keeps records in memory. Used by replay and tests.
type MemorySink struct {
	mu      sync.Mutex
	records []Record
	err     error
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// SetError makes every later Append fail with err until cleared with nil.
func (m *MemorySink) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MemorySink) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	rec.Slots = copySlots(rec.Slots)
	m.records = append(m.records, rec)
	return nil
}

func (m *MemorySink) LastHash(context.Context) (int64, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return 0, "", nil
	}
	last := m.records[len(m.records)-1]
	return last.Seq, last.Hash, nil
}

func (m *MemorySink) List(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs := m.records
	if limit > 0 && len(rs) > limit {
		rs = rs[len(rs)-limit:]
	}
	out := make([]Record, len(rs))
	for i, r := range rs {
		r.Slots = copySlots(r.Slots)
		out[i] = r
	}
	return out, nil
}

func (m *MemorySink) Close() error { return nil }

func copySlots(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// #endregion memory-sink
