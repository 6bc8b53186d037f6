// Package store persists the audit trail of applied view evaluations.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/risk-alerts/pkg/scoring"
)

// ErrNotFound is returned when an evaluation id does not exist.
var ErrNotFound = eris.New("store: evaluation not found")

// Evaluation is one applied view evaluation.
type Evaluation struct {
	ID            string          `json:"id"`
	ViewID        string          `json:"view_id"`
	TransactionID string          `json:"transaction_id"`
	Request       scoring.Request `json:"request"`
	Result        *scoring.Result `json:"result,omitempty"`
	Level         string          `json:"level"`
	Label         string          `json:"label"`
	TierSource    string          `json:"tier_source"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ListFilter specifies criteria for listing evaluations, newest first.
type ListFilter struct {
	ViewID        string `json:"view_id,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	// CreatedAfter keeps evaluations created at or after this instant.
	CreatedAfter time.Time `json:"created_after,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for evaluation audits.
type Store interface {
	// RecordEvaluation assigns ID and CreatedAt when empty and inserts e.
	RecordEvaluation(ctx context.Context, e *Evaluation) error
	GetEvaluation(ctx context.Context, id string) (*Evaluation, error)
	ListEvaluations(ctx context.Context, filter ListFilter) ([]Evaluation, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a Store.
type Config struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// DefaultSQLitePath is used when the sqlite driver has no database URL.
const DefaultSQLitePath = "risk-alerts.db"

// Open builds the Store named by cfg.Driver. It returns (nil, nil) for the
// "none" driver and an empty driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}

func prepare(e *Evaluation, newID func() string, now func() time.Time) {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now().UTC()
	}
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 50
	}
	return n
}
