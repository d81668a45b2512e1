package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gowebpki/jcs"
	"github.com/rs/zerolog"
)

// #region log
// Log serializes appends through one writer goroutine so that sequence
// numbers and the hash chain follow completion order.
type Log struct {
	sink     Sink
	config   Config
	fallback zerolog.Logger
	log      zerolog.Logger
	onFall   func(reason string)

	reqs chan request
	stop chan struct{}
	done chan struct{}
	once sync.Once

	seq  int64 // writer-owned
	prev string
}

type request struct {
	ctx   context.Context
	rec   Record
	reply chan reply
}

type reply struct {
	rec Record
	err error
}

// Option configures a Log.
type Option func(*Log)

// WithLogger sets the diagnostic logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Log) { a.log = l.With().Str("component", "audit").Logger() }
}

// WithFallback sets where records go when the sink cannot take them.
func WithFallback(l zerolog.Logger) Option {
	return func(a *Log) { a.fallback = l }
}

// WithFallbackHook is called once per record written to the fallback.
func WithFallbackHook(fn func(reason string)) Option {
	return func(a *Log) { a.onFall = fn }
}

// New resumes the chain from the sink's newest record and starts the writer.
func New(ctx context.Context, sink Sink, config Config, opts ...Option) (*Log, error) {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}
	seq, prev, err := sink.LastHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume audit chain: %w", err)
	}
	a := &Log{
		sink:     sink,
		config:   config,
		fallback: zerolog.Nop(),
		log:      zerolog.Nop(),
		onFall:   func(string) {},
		reqs:     make(chan request),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		seq:      seq,
		prev:     prev,
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.writer()
	return a, nil
}

// Record appends rec and returns it as stored. On any failure the full
// record is written to the fallback channel and ErrSinkUnavailable is
// returned; the call never outlives the write timeout by more than the
// sink's own cancellation latency.
func (a *Log) Record(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rec.Timestamp = rec.Timestamp.UTC().Round(0)
	if rec.Slots == nil {
		rec.Slots = map[string]string{}
	}

	wctx, cancel := context.WithTimeout(ctx, a.config.WriteTimeout)
	defer cancel()

	req := request{ctx: wctx, rec: rec, reply: make(chan reply, 1)}
	select {
	case a.reqs <- req:
	case <-a.stop:
		return rec, a.fall(rec, errors.New("audit log closed"))
	case <-wctx.Done():
		return rec, a.fall(rec, wctx.Err())
	}
	r := <-req.reply
	return r.rec, r.err
}

// Close stops the writer and closes the sink.
func (a *Log) Close() error {
	var err error
	a.once.Do(func() {
		close(a.stop)
		<-a.done
		err = a.sink.Close()
	})
	return err
}

func (a *Log) writer() {
	defer close(a.done)
	for {
		select {
		case req := <-a.reqs:
			req.reply <- a.append(req.ctx, req.rec)
		case <-a.stop:
			return
		}
	}
}

func (a *Log) append(ctx context.Context, rec Record) reply {
	if err := ctx.Err(); err != nil {
		return reply{rec: rec, err: a.fall(rec, err)}
	}
	rec.Seq = a.seq + 1
	rec.PrevHash = a.prev
	h, err := Digest(rec)
	if err != nil {
		return reply{rec: rec, err: a.fall(rec, err)}
	}
	rec.Hash = h
	if err := a.sink.Append(ctx, rec); err != nil {
		return reply{rec: rec, err: a.fall(rec, err)}
	}
	a.seq, a.prev = rec.Seq, rec.Hash
	return reply{rec: rec}
}

// fall writes rec to the fallback channel. Fallback records carry no
// chain position.
func (a *Log) fall(rec Record, cause error) error {
	rec.Seq, rec.PrevHash, rec.Hash = 0, "", ""
	raw, err := json.Marshal(rec)
	if err != nil {
		raw = []byte(fmt.Sprintf("%q", fmt.Sprintf("%+v", rec)))
	}
	a.fallback.Error().Err(cause).Str("audit_id", rec.ID).RawJSON("record", raw).Msg("audit fallback")
	a.log.Warn().Err(cause).Str("audit_id", rec.ID).Msg("audit sink unavailable")
	a.onFall(cause.Error())
	return fmt.Errorf("%w: %w", ErrSinkUnavailable, cause)
}

// #endregion log

// #region chain
// Digest is the sha256 of the RFC 8785 canonical JSON of rec with Hash
// cleared.
func Digest(rec Record) (string, error) {
	rec.Hash = ""
	if rec.Slots == nil {
		rec.Slots = map[string]string{}
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("digest record: %w", err)
	}
	canon, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize record: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// Verify checks that records form an unbroken chain. Records are sorted
// by seq first; a chain starting at seq 1 must have an empty PrevHash.
func Verify(records []Record) error {
	rs := append([]Record(nil), records...)
	sort.Slice(rs, func(i, j int) bool { return rs[i].Seq < rs[j].Seq })
	for i, r := range rs {
		want, err := Digest(r)
		if err != nil {
			return &ChainError{Seq: r.Seq, Reason: err.Error()}
		}
		if r.Hash != want {
			return &ChainError{Seq: r.Seq, Reason: "hash does not match contents"}
		}
		switch {
		case i == 0 && r.Seq == 1 && r.PrevHash != "":
			return &ChainError{Seq: r.Seq, Reason: "first record has a previous hash"}
		case i > 0 && r.Seq != rs[i-1].Seq+1:
			return &ChainError{Seq: r.Seq, Reason: fmt.Sprintf("gap after seq %d", rs[i-1].Seq)}
		case i > 0 && r.PrevHash != rs[i-1].Hash:
			return &ChainError{Seq: r.Seq, Reason: "previous hash mismatch"}
		}
	}
	return nil
}

// #endregion chain
