package parallel

import (
	"context"
	"fmt"

	"github.com/skeinflow/skein/internal/engine"
	"github.com/skeinflow/skein/pkg/api"
)

// ErrorMode controls how a parallel action reacts to task failures.
type ErrorMode int

const (
	// FailFast cancels outstanding tasks on the first failure and returns
	// that failure from the parallel action. The default.
	FailFast ErrorMode = iota
	// CollectErrors lets every task run to completion and hands the reducer
	// the full result list, failures included. The reducer decides what a
	// partial success means.
	CollectErrors
)

// Reducer folds the ordered task results into the parallel action's own
// result and written state. state is the parent's read-set view; the
// returned state must only touch the action's declared write-set.
type Reducer func(ctx context.Context, state api.State, results []TaskResult) (api.Result, api.State, error)

// Config describes a parallel map-reduce action.
type Config struct {
	// Name of the action in the parent graph.
	Name string
	// Reads and Writes declare the action's state footprint, exactly like
	// any other action.
	Reads  []string
	Writes []string
	// RuntimeInputs declares inputs callers must supply at run time. They
	// are visible to the Source, which decides how to spread them across
	// tasks.
	RuntimeInputs []string

	Source  Source
	Reducer Reducer

	// Executor overrides task scheduling. Defaults to the executor carried
	// by the parent application, then to an unbounded Pool.
	Executor Executor

	ErrorMode ErrorMode

	// DisableCascade stops the parent's persister and tracker from being
	// inherited by child applications. Children then run unpersisted and
	// untracked unless the subgraph wires its own.
	DisableCascade bool
}

// MapReduce builds an action that fans its tasks out, waits for all of
// them, and reduces their terminal states in generation order. Panics when
// Name, Source, or Reducer is missing; a parallel action cannot operate
// without them.
func MapReduce(cfg Config) api.Action {
	if cfg.Name == "" {
		panic("parallel: MapReduce requires a name")
	}
	if cfg.Source == nil {
		panic("parallel: MapReduce requires a task source")
	}
	if cfg.Reducer == nil {
		panic("parallel: MapReduce requires a reducer")
	}
	return &mapReduceAction{cfg: cfg}
}

type mapReduceAction struct {
	cfg Config
}

var _ api.Action = (*mapReduceAction)(nil)

func (m *mapReduceAction) Name() string     { return m.cfg.Name }
func (m *mapReduceAction) Reads() []string  { return m.cfg.Reads }
func (m *mapReduceAction) Writes() []string { return m.cfg.Writes }
func (m *mapReduceAction) Inputs() []string { return m.cfg.RuntimeInputs }

func (m *mapReduceAction) Run(ctx context.Context, state api.State, inputs api.Inputs) (api.Result, api.State, error) {
	ac, _ := api.AppContextFrom(ctx)

	tasks, err := m.cfg.Source.Tasks(ctx, state, inputs)
	if err != nil {
		return nil, state, fmt.Errorf("%s: generate tasks: %w", m.cfg.Name, err)
	}
	for i := range tasks {
		tasks[i].Index = i
		tasks[i].ID = childID(ac.App.AppID, m.cfg.Name, i)
	}

	if ac.Tracker != nil {
		ac.Tracker.OnSpanStart(ctx, ac.App, "parallel:"+m.cfg.Name)
		defer ac.Tracker.OnSpanEnd(ctx, ac.App, "parallel:"+m.cfg.Name)
	}

	results := make([]TaskResult, len(tasks))
	run := func(tctx context.Context, i int) error {
		final, taskErr := m.runTask(tctx, ac, tasks[i])
		if taskErr != nil {
			taskErr = &api.TaskError{TaskID: tasks[i].ID, Err: taskErr}
			if m.cfg.ErrorMode == FailFast {
				return taskErr
			}
		}
		results[i] = TaskResult{Task: tasks[i], State: final, Err: taskErr}
		return nil
	}
	if err := m.executor(ac).Execute(ctx, len(tasks), run); err != nil {
		return nil, state, err
	}

	return m.cfg.Reducer(ctx, state, results)
}

// runTask runs one child application to its halt point and returns its
// final state. A previously persisted child that already halted is not
// re-run; its checkpointed state is returned as-is.
func (m *mapReduceAction) runTask(ctx context.Context, ac api.AppContext, task Task) (api.State, error) {
	var (
		tracker   api.Tracker
		persister api.Persister
	)
	if !m.cfg.DisableCascade {
		tracker = ac.Tracker
		persister = ac.Persister
	}

	state := task.State
	position := task.Runnable.entrypoint()
	var sequence int64
	if persister != nil {
		chk, err := persister.Load(ctx, task.ID, ac.App.PartitionKey)
		if err != nil {
			return api.State{}, fmt.Errorf("load checkpoint: %w", err)
		}
		if chk != nil {
			if chk.Position == engine.Halted {
				return chk.State, nil
			}
			state = chk.State
			position = chk.Position
			sequence = chk.Sequence
		}
	}

	child := engine.New(engine.Config{
		Graph:        task.Runnable.Graph,
		State:        state,
		Position:     position,
		AppID:        task.ID,
		PartitionKey: ac.App.PartitionKey,
		ParentID:     ac.App.AppID,
		Sequence:     sequence,
		Tracker:      tracker,
		Persister:    persister,
		Registry:     ac.Registry,
		Executor:     ac.Executor,
	})
	if tracker != nil {
		tracker.OnAppCreated(ctx, child.Info())
		tracker.OnSpanStart(ctx, child.Info(), "task:"+task.Runnable.label())
		defer tracker.OnSpanEnd(ctx, child.Info(), "task:"+task.Runnable.label())
	}

	opts := []api.RunOption{api.WithInputs(task.Inputs)}
	if len(task.Runnable.HaltAfter) > 0 {
		opts = append(opts, api.WithHaltAfter(task.Runnable.HaltAfter...))
	}
	rr, err := child.Run(ctx, opts...)
	if err != nil {
		return api.State{}, err
	}
	return rr.State, nil
}

func (m *mapReduceAction) executor(ac api.AppContext) Executor {
	if m.cfg.Executor != nil {
		return m.cfg.Executor
	}
	if ex, ok := ac.Executor.(Executor); ok && ex != nil {
		return ex
	}
	return Pool(0)
}

// childID derives a stable task identifier. The same parent, action, and
// index always yield the same ID, which is what lets a restarted fan-out
// pick its children's checkpoints back up.
func childID(parentID, action string, index int) string {
	if parentID == "" {
		return fmt.Sprintf("%s:%d", action, index)
	}
	return fmt.Sprintf("%s:%s:%d", parentID, action, index)
}
