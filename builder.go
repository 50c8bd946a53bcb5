package skein

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/skeinflow/skein/internal/engine"
	"github.com/skeinflow/skein/pkg/api"
)

// Builder assembles an Application. Every With method returns a modified
// copy and leaves its receiver untouched, so a partially configured
// builder can be shared and forked freely:
//
//	base := skein.NewApplication().
//	    WithActions(counter, done).
//	    WithTransitions(transitions...).
//	    WithEntrypoint("counter")
//
//	a, err := base.WithIdentifier("run-a").Build(ctx)
//	b, err := base.WithIdentifier("run-b").Build(ctx)
type Builder struct {
	actions     []api.Action
	transitions []api.Transition
	entrypoint  string
	state       api.State
	appID       string
	partition   string
	sequence    int64
	hooks       []api.Hooks
	tracker     api.Tracker
	persister   api.Persister
	registry    *api.SerdeRegistry
	executor    any
}

// NewApplication starts an empty Builder.
func NewApplication() Builder {
	return Builder{}
}

// WithActions adds actions to the graph. Panics on a nil action.
func (b Builder) WithActions(actions ...api.Action) Builder {
	for _, a := range actions {
		if a == nil {
			panic("skein: WithActions called with nil action")
		}
	}
	b.actions = appendCopy(b.actions, actions)
	return b
}

// WithTransitions adds transitions to the graph. Order matters: the first
// matching transition out of an action wins.
func (b Builder) WithTransitions(transitions ...api.Transition) Builder {
	b.transitions = appendCopy(b.transitions, transitions)
	return b
}

// WithEntrypoint names the action execution starts at.
func (b Builder) WithEntrypoint(name string) Builder {
	b.entrypoint = name
	return b
}

// WithState sets the initial state. Ignored when the application resumes
// from a checkpoint.
func (b Builder) WithState(s api.State) Builder {
	b.state = s
	return b
}

// WithIdentifier sets the application ID. Defaults to a random UUID. An
// explicit identifier is what makes resuming possible: building again
// with the same ID and persister picks up the previous checkpoint.
func (b Builder) WithIdentifier(appID string) Builder {
	b.appID = appID
	return b
}

// WithPartitionKey sets the partition key under which checkpoints are
// stored. Empty is a valid partition.
func (b Builder) WithPartitionKey(key string) Builder {
	b.partition = key
	return b
}

// WithSequence sets the starting sequence counter for applications
// assembled from externally managed state. Overridden by a checkpoint.
func (b Builder) WithSequence(seq int64) Builder {
	b.sequence = seq
	return b
}

// WithHooks appends lifecycle hooks. Hooks run in registration order.
func (b Builder) WithHooks(hooks ...api.Hooks) Builder {
	b.hooks = appendCopy(b.hooks, hooks)
	return b
}

// WithTracker sets the tracker observing this application and, unless
// cascading is disabled, its parallel children.
func (b Builder) WithTracker(t api.Tracker) Builder {
	b.tracker = t
	return b
}

// WithPersister sets the checkpoint store.
func (b Builder) WithPersister(p api.Persister) Builder {
	b.persister = p
	return b
}

// WithSerdeRegistry sets the registry used to encode and decode state
// fields that are not JSON-friendly.
func (b Builder) WithSerdeRegistry(reg *api.SerdeRegistry) Builder {
	b.registry = reg
	return b
}

// WithExecutor sets the default executor for parallel actions in this
// application. Accepts a parallel.Executor; typed as any here to keep the
// dependency direction pointing at this package.
func (b Builder) WithExecutor(ex any) Builder {
	b.executor = ex
	return b
}

// Build validates the graph and assembles the application. When a
// persister is configured and holds a checkpoint for the application's
// identifier, the checkpoint's state, position, and sequence replace the
// builder's; a fresh application reports its creation to the tracker.
func (b Builder) Build(ctx context.Context) (api.Application, error) {
	graph, err := api.NewGraph(b.actions, b.transitions, b.entrypoint)
	if err != nil {
		return nil, err
	}

	appID := b.appID
	if appID == "" {
		appID = uuid.NewString()
	}

	cfg := engine.Config{
		Graph:        graph,
		State:        b.state,
		AppID:        appID,
		PartitionKey: b.partition,
		Sequence:     b.sequence,
		Hooks:        b.hooks,
		Tracker:      b.tracker,
		Persister:    b.persister,
		Registry:     b.registry,
		Executor:     b.executor,
	}

	fresh := true
	if b.persister != nil {
		chk, err := b.persister.Load(ctx, appID, b.partition)
		if err != nil {
			return nil, fmt.Errorf("load checkpoint for %s: %w", appID, err)
		}
		if chk != nil {
			fresh = false
			cfg.State = chk.State
			cfg.Position = chk.Position
			cfg.Finished = chk.Position == engine.Halted
			cfg.Sequence = chk.Sequence
		}
	}

	app := engine.New(cfg)
	if fresh && b.tracker != nil {
		b.tracker.OnAppCreated(ctx, app.Info())
	}
	return app, nil
}

// appendCopy joins two slices into fresh backing storage so with-method
// copies never alias each other's growth.
func appendCopy[T any](dst, src []T) []T {
	out := make([]T, 0, len(dst)+len(src))
	out = append(out, dst...)
	return append(out, src...)
}
