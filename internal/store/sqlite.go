package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/risk-alerts/pkg/scoring"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS evaluations (
	id             TEXT PRIMARY KEY,
	view_id        TEXT NOT NULL,
	transaction_id TEXT NOT NULL,
	request        TEXT NOT NULL,
	result         TEXT,
	level          TEXT NOT NULL,
	label          TEXT NOT NULL,
	tier_source    TEXT NOT NULL,
	error          TEXT NOT NULL DEFAULT '',
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_evaluations_view_id ON evaluations(view_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_transaction_id ON evaluations(transaction_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) RecordEvaluation(ctx context.Context, e *Evaluation) error {
	prepare(e, uuid.NewString, time.Now)

	reqJSON, resultJSON, err := marshalEvaluation(e)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evaluation")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO evaluations (id, view_id, transaction_id, request, result, level, label, tier_source, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ViewID, e.TransactionID, string(reqJSON), resultJSON, e.Level, e.Label, e.TierSource, e.Error, e.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert evaluation %s", e.ID)
}

func (s *SQLiteStore) GetEvaluation(ctx context.Context, id string) (*Evaluation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, view_id, transaction_id, request, result, level, label, tier_source, error, created_at
		 FROM evaluations WHERE id = ?`, id)
	e, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get evaluation %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get evaluation %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) ListEvaluations(ctx context.Context, filter ListFilter) ([]Evaluation, error) {
	query := `SELECT id, view_id, transaction_id, request, result, level, label, tier_source, error, created_at
		FROM evaluations WHERE 1=1`
	var args []any
	if filter.ViewID != "" {
		query += ` AND view_id = ?`
		args = append(args, filter.ViewID)
	}
	if filter.TransactionID != "" {
		query += ` AND transaction_id = ?`
		args = append(args, filter.TransactionID)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list evaluations")
	}
	defer rows.Close() //nolint:errcheck

	var out []Evaluation
	for rows.Next() {
		e, err := scanEvaluation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan evaluation")
		}
		out = append(out, *e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list evaluations iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scannable) (*Evaluation, error) {
	var e Evaluation
	var reqJSON string
	var resultJSON sql.NullString

	err := row.Scan(&e.ID, &e.ViewID, &e.TransactionID, &reqJSON, &resultJSON,
		&e.Level, &e.Label, &e.TierSource, &e.Error, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := unmarshalEvaluation(&e, []byte(reqJSON), resultJSON.Valid, []byte(resultJSON.String)); err != nil {
		return nil, err
	}
	return &e, nil
}

func marshalEvaluation(e *Evaluation) ([]byte, *string, error) {
	reqJSON, err := json.Marshal(e.Request)
	if err != nil {
		return nil, nil, err
	}
	if e.Result == nil {
		return reqJSON, nil, nil
	}
	b, err := json.Marshal(e.Result)
	if err != nil {
		return nil, nil, err
	}
	s := string(b)
	return reqJSON, &s, nil
}

func unmarshalEvaluation(e *Evaluation, reqJSON []byte, hasResult bool, resultJSON []byte) error {
	if err := json.Unmarshal(reqJSON, &e.Request); err != nil {
		return eris.Wrap(err, "unmarshal request")
	}
	if hasResult {
		e.Result = &scoring.Result{}
		if err := json.Unmarshal(resultJSON, e.Result); err != nil {
			return eris.Wrap(err, "unmarshal result")
		}
	}
	return nil
}
