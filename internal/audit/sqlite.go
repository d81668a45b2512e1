package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	seq                  INTEGER PRIMARY KEY,
	id                   TEXT NOT NULL UNIQUE,
	created_at           TEXT NOT NULL,
	utterance            TEXT NOT NULL,
	intent               TEXT NOT NULL,
	confidence           REAL NOT NULL,
	source               TEXT NOT NULL,
	slots_json           TEXT NOT NULL,
	risk_tier            TEXT,
	confirmation_outcome TEXT,
	action_taken         TEXT,
	success              INTEGER NOT NULL,
	message              TEXT NOT NULL,
	error_kind           TEXT,
	policy_version       TEXT,
	prev_hash            TEXT NOT NULL,
	hash                 TEXT NOT NULL
);

CREATE TRIGGER IF NOT EXISTS audit_log_no_update BEFORE UPDATE ON audit_log
BEGIN SELECT RAISE(ABORT, 'audit_log is append-only'); END;

CREATE TRIGGER IF NOT EXISTS audit_log_no_delete BEFORE DELETE ON audit_log
BEGIN SELECT RAISE(ABORT, 'audit_log is append-only'); END;
`

const columns = `seq, id, created_at, utterance, intent, confidence, source, slots_json,
	risk_tier, confirmation_outcome, action_taken, success, message, error_kind,
	policy_version, prev_hash, hash`

// #endregion schema

// #region sqlite-sink
// SQLiteSink stores records in the audit_log table.
type SQLiteSink struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// one connection keeps :memory: databases shared and writes ordered
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	s, err := NewSQLiteSink(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteSink migrates db and wraps it.
func NewSQLiteSink(db *sql.DB) (*SQLiteSink, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Append(ctx context.Context, rec Record) error {
	slots, err := json.Marshal(rec.Slots)
	if err != nil {
		return fmt.Errorf("encode slots: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_log (`+columns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Seq,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Utterance,
		rec.Intent,
		rec.Confidence,
		rec.Source,
		string(slots),
		nullIfEmpty(rec.RiskTier),
		nullIfEmpty(rec.ConfirmationOutcome),
		nullIfEmpty(rec.ActionTaken),
		rec.Success,
		rec.Message,
		nullIfEmpty(rec.ErrorKind),
		nullIfEmpty(rec.PolicyVersion),
		rec.PrevHash,
		rec.Hash,
	)
	if err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	return nil
}

func (s *SQLiteSink) LastHash(ctx context.Context) (int64, string, error) {
	var seq int64
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT seq, hash FROM audit_log ORDER BY seq DESC LIMIT 1`).Scan(&seq, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("last audit hash: %w", err)
	}
	return seq, hash, nil
}

func (s *SQLiteSink) List(ctx context.Context, limit int) ([]Record, error) {
	q := `SELECT ` + columns + ` FROM (SELECT * FROM audit_log ORDER BY seq DESC LIMIT ?) ORDER BY seq ASC`
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		rec                                 Record
		created, slots                      string
		risk, confirm, action, kind, policy sql.NullString
	)
	err := rows.Scan(&rec.Seq, &rec.ID, &created, &rec.Utterance, &rec.Intent, &rec.Confidence,
		&rec.Source, &slots, &risk, &confirm, &action, &rec.Success, &rec.Message, &kind,
		&policy, &rec.PrevHash, &rec.Hash)
	if err != nil {
		return Record{}, fmt.Errorf("scan audit record: %w", err)
	}
	if rec.Timestamp, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	if err := json.Unmarshal([]byte(slots), &rec.Slots); err != nil {
		return Record{}, fmt.Errorf("decode slots: %w", err)
	}
	rec.RiskTier = risk.String
	rec.ConfirmationOutcome = confirm.String
	rec.ActionTaken = action.String
	rec.ErrorKind = kind.String
	rec.PolicyVersion = policy.String
	return rec, nil
}

// #endregion sqlite-sink

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
