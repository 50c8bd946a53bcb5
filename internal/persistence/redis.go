package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"
	"github.com/skeinflow/skein/pkg/api"
)

// RedisPersister is a Persister backed by Redis. Checkpoints are stored as
// JSON values under prefixed keys, so they stay inspectable with ordinary
// Redis tooling. State encoding goes through the configured serde registry,
// like the SQLite persister.
type RedisPersister struct {
	client   *backend.Client
	prefix   string
	ttl      time.Duration
	registry *api.SerdeRegistry
}

var _ api.Persister = (*RedisPersister)(nil)

// RedisOption configures a RedisPersister.
type RedisOption func(*RedisPersister)

// WithRedisPrefix sets the key prefix. Default "skein:checkpoint:".
func WithRedisPrefix(prefix string) RedisOption {
	return func(p *RedisPersister) {
		p.prefix = prefix
	}
}

// WithRedisTTL sets an expiration on stored checkpoints. Zero (the default)
// keeps them forever.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(p *RedisPersister) {
		p.ttl = ttl
	}
}

// WithRedisSerde sets the serde registry used to encode state fields.
func WithRedisSerde(reg *api.SerdeRegistry) RedisOption {
	return func(p *RedisPersister) {
		p.registry = reg
	}
}

// NewRedis creates a RedisPersister from an existing client.
func NewRedis(client *backend.Client, opts ...RedisOption) *RedisPersister {
	p := &RedisPersister{
		client: client,
		prefix: "skein:checkpoint:",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RedisPersister) key(appID, partitionKey string) string {
	return p.prefix + appID + ":" + partitionKey
}

// checkpointDoc is the stored JSON shape.
type checkpointDoc struct {
	Sequence  int64          `json:"sequence"`
	Position  string         `json:"position"`
	State     map[string]any `json:"state"`
	Status    string         `json:"status"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (p *RedisPersister) Save(ctx context.Context, chk *api.Checkpoint) error {
	raw, err := chk.State.Serialize(p.registry)
	if err != nil {
		return fmt.Errorf("redis persister: %w", err)
	}
	data, err := json.Marshal(checkpointDoc{
		Sequence:  chk.Sequence,
		Position:  chk.Position,
		State:     raw,
		Status:    string(chk.Status),
		UpdatedAt: chk.UpdatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("redis persister: encode checkpoint: %w", err)
	}

	if err := p.client.Set(ctx, p.key(chk.AppID, chk.PartitionKey), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis persister: %w", err)
	}
	return nil
}

func (p *RedisPersister) Load(ctx context.Context, appID, partitionKey string) (*api.Checkpoint, error) {
	data, err := p.client.Get(ctx, p.key(appID, partitionKey)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis persister: %w", err)
	}

	var doc checkpointDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("redis persister: decode checkpoint: %w", err)
	}
	restored, err := api.DeserializeState(doc.State, p.registry)
	if err != nil {
		return nil, fmt.Errorf("redis persister: %w", err)
	}

	return &api.Checkpoint{
		AppID:        appID,
		PartitionKey: partitionKey,
		Sequence:     doc.Sequence,
		Position:     doc.Position,
		State:        restored,
		Status:       api.Status(doc.Status),
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}

// Delete removes the checkpoint for an application, if any.
func (p *RedisPersister) Delete(ctx context.Context, appID, partitionKey string) error {
	return p.client.Del(ctx, p.key(appID, partitionKey)).Err()
}
