package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS evaluations (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	view_id        TEXT NOT NULL,
	transaction_id TEXT NOT NULL,
	request        JSONB NOT NULL,
	result         JSONB,
	level          TEXT NOT NULL,
	label          TEXT NOT NULL,
	tier_source    TEXT NOT NULL,
	error          TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_evaluations_view_id ON evaluations(view_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_transaction_id ON evaluations(transaction_id);
CREATE INDEX IF NOT EXISTS idx_evaluations_created_at ON evaluations(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) RecordEvaluation(ctx context.Context, e *Evaluation) error {
	prepare(e, uuid.NewString, time.Now)

	reqJSON, resultJSON, err := marshalEvaluation(e)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evaluation")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO evaluations (id, view_id, transaction_id, request, result, level, label, tier_source, error, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.ViewID, e.TransactionID, reqJSON, resultJSON, e.Level, e.Label, e.TierSource, e.Error, e.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert evaluation %s", e.ID)
}

func (s *PostgresStore) GetEvaluation(ctx context.Context, id string) (*Evaluation, error) {
	var e Evaluation
	var reqJSON []byte
	var resultJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, view_id, transaction_id, request, result, level, label, tier_source, error, created_at FROM evaluations WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.ViewID, &e.TransactionID, &reqJSON, &resultJSON, &e.Level, &e.Label, &e.TierSource, &e.Error, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get evaluation %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get evaluation %s", id)
	}

	if err := decodePostgresRow(&e, reqJSON, resultJSON); err != nil {
		return nil, eris.Wrapf(err, "postgres: get evaluation %s", id)
	}
	return &e, nil
}

func (s *PostgresStore) ListEvaluations(ctx context.Context, filter ListFilter) ([]Evaluation, error) {
	query := `SELECT id, view_id, transaction_id, request, result, level, label, tier_source, error, created_at FROM evaluations WHERE 1=1`
	var args []any
	if filter.ViewID != "" {
		args = append(args, filter.ViewID)
		query += fmt.Sprintf(` AND view_id = $%d`, len(args))
	}
	if filter.TransactionID != "" {
		args = append(args, filter.TransactionID)
		query += fmt.Sprintf(` AND transaction_id = $%d`, len(args))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter.UTC())
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	args = append(args, limitOrDefault(filter.Limit), filter.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list evaluations")
	}
	defer rows.Close()

	var out []Evaluation
	for rows.Next() {
		var e Evaluation
		var reqJSON []byte
		var resultJSON []byte
		if err := rows.Scan(&e.ID, &e.ViewID, &e.TransactionID, &reqJSON, &resultJSON, &e.Level, &e.Label, &e.TierSource, &e.Error, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan evaluation")
		}
		if err := decodePostgresRow(&e, reqJSON, resultJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: decode evaluation")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list evaluations iterate")
}

// decodePostgresRow treats a NULL result column, scanned as a nil slice, as
// a missing result.
func decodePostgresRow(e *Evaluation, reqJSON, resultJSON []byte) error {
	return unmarshalEvaluation(e, reqJSON, resultJSON != nil, resultJSON)
}
