package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/skeinflow/skein/pkg/api"
)

// SQLitePersister is a Persister backed by SQLite.
//
// It expects an *sql.DB using a SQLite driver (for example
// "modernc.org/sqlite"). The caller is responsible for importing the
// driver:
//
//	import _ "modernc.org/sqlite"
//
// State is stored as JSON produced by the configured serde registry, so
// values must either be JSON-encodable or have a registered field serde.
// Note that JSON round-trips decode numbers as float64.
type SQLitePersister struct {
	db       *sql.DB
	registry *api.SerdeRegistry
}

var _ api.Persister = (*SQLitePersister)(nil)

// SQLiteOption configures a SQLitePersister.
type SQLiteOption func(*SQLitePersister)

// WithSQLiteSerde sets the serde registry used to encode state fields.
func WithSQLiteSerde(reg *api.SerdeRegistry) SQLiteOption {
	return func(p *SQLitePersister) {
		p.registry = reg
	}
}

// NewSQLite initializes the checkpoint schema in the given database and
// returns a SQLitePersister.
func NewSQLite(db *sql.DB, opts ...SQLiteOption) (*SQLitePersister, error) {
	p := &SQLitePersister{db: db}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.initSchema(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *SQLitePersister) initSchema() error {
	_, err := p.db.Exec(`
		CREATE TABLE IF NOT EXISTS checkpoints (
			app_id TEXT NOT NULL,
			partition_key TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			position TEXT NOT NULL,
			state BLOB,
			status TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			PRIMARY KEY (app_id, partition_key)
		);`,
	)
	return err
}

func (p *SQLitePersister) Save(ctx context.Context, chk *api.Checkpoint) error {
	raw, err := chk.State.Serialize(p.registry)
	if err != nil {
		return fmt.Errorf("sqlite persister: %w", err)
	}
	state, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("sqlite persister: encode state: %w", err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO checkpoints (app_id, partition_key, sequence, position, state, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (app_id, partition_key) DO UPDATE SET
			sequence = excluded.sequence,
			position = excluded.position,
			state = excluded.state,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		chk.AppID,
		chk.PartitionKey,
		chk.Sequence,
		chk.Position,
		state,
		string(chk.Status),
		chk.UpdatedAt.UTC(),
	)
	return err
}

func (p *SQLitePersister) Load(ctx context.Context, appID, partitionKey string) (*api.Checkpoint, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT sequence, position, state, status, updated_at
		FROM checkpoints
		WHERE app_id = ? AND partition_key = ?`,
		appID, partitionKey,
	)

	var (
		sequence  int64
		position  string
		state     []byte
		status    string
		updatedAt time.Time
	)
	if err := row.Scan(&sequence, &position, &state, &status, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var raw map[string]any
	if len(state) > 0 {
		if err := json.Unmarshal(state, &raw); err != nil {
			return nil, fmt.Errorf("sqlite persister: decode state: %w", err)
		}
	}
	restored, err := api.DeserializeState(raw, p.registry)
	if err != nil {
		return nil, fmt.Errorf("sqlite persister: %w", err)
	}

	return &api.Checkpoint{
		AppID:        appID,
		PartitionKey: partitionKey,
		Sequence:     sequence,
		Position:     position,
		State:        restored,
		Status:       api.Status(status),
		UpdatedAt:    updatedAt,
	}, nil
}
