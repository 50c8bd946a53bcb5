// Package persistence provides the persister implementations shipped with
// the engine: in-memory for tests and development, SQLite for embedded
// durability, and Redis for shared remote state. All of them are safe for
// concurrent use by parallel child applications.
package persistence

import (
	"context"
	"sync"

	"github.com/skeinflow/skein/pkg/api"
)

// MemoryPersister is a goroutine-safe, non-durable Persister backed by a
// map. Best for tests and local development.
type MemoryPersister struct {
	mu          sync.RWMutex
	checkpoints map[string]api.Checkpoint
}

var _ api.Persister = (*MemoryPersister)(nil)

// NewMemory creates an empty MemoryPersister.
func NewMemory() *MemoryPersister {
	return &MemoryPersister{
		checkpoints: make(map[string]api.Checkpoint),
	}
}

func key(appID, partitionKey string) string {
	return appID + "\x00" + partitionKey
}

func (p *MemoryPersister) Load(ctx context.Context, appID, partitionKey string) (*api.Checkpoint, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	chk, ok := p.checkpoints[key(appID, partitionKey)]
	if !ok {
		return nil, nil
	}
	// Return a copy; the caller owns its checkpoint.
	out := chk
	return &out, nil
}

func (p *MemoryPersister) Save(ctx context.Context, chk *api.Checkpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.checkpoints[key(chk.AppID, chk.PartitionKey)] = *chk
	return nil
}

// Delete removes the checkpoint for an application, if any.
func (p *MemoryPersister) Delete(ctx context.Context, appID, partitionKey string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.checkpoints, key(appID, partitionKey))
	return nil
}

// Len returns the number of stored checkpoints.
func (p *MemoryPersister) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.checkpoints)
}
