package api

import (
	"context"
	"time"
)

// Status describes where an application stands when a checkpoint is taken.
type Status string

const (
	StatusRunning Status = "RUNNING"
	StatusHalted  Status = "HALTED"
	StatusFailed  Status = "FAILED"
)

// Checkpoint is the durable snapshot of an application between steps:
// its state, the pointer to the next action (empty when halted), and the
// sequence counter. Persisters store and return checkpoints opaquely.
type Checkpoint struct {
	AppID        string
	PartitionKey string
	Sequence     int64
	// Position names the next action to execute, or "" when halted.
	Position  string
	State     State
	Status    Status
	UpdatedAt time.Time
}

// Persister is the durability collaborator. The engine calls Load once at
// Build when resuming an identified application, and Save after every
// committed step.
//
// Implementations must be safe for concurrent use: a parallel fan-out
// cascades the parent's persister to every child application.
type Persister interface {
	// Load returns the latest checkpoint for the application, or
	// (nil, nil) when none exists.
	Load(ctx context.Context, appID, partitionKey string) (*Checkpoint, error)

	// Save stores the checkpoint, replacing any previous one for the
	// same application.
	Save(ctx context.Context, chk *Checkpoint) error
}
