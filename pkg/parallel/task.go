// Package parallel runs independent sub-computations (single actions or
// whole subgraphs) against varied states, varied actions, or their full
// cartesian product, and reduces the terminal states back into the parent
// application's state. The whole fan-out behaves as one ordinary action
// from the parent graph's perspective.
//
// Each task runs as its own child Application with a stable, deterministic
// identifier, so a crashed fan-out re-associates every task with its
// persisted progress on the next run instead of starting over.
package parallel

import (
	"context"
	"fmt"

	"github.com/skeinflow/skein/pkg/api"
)

// Runnable is the unit a task executes: a graph, the entrypoint to start
// from, and the halt-after set that ends the child run. A whole nested
// state machine acts as a single action from the parent's perspective.
type Runnable struct {
	Graph      *api.Graph
	Entrypoint string   // defaults to the graph's entrypoint
	HaltAfter  []string // empty: run to a terminal action
	// Label names the runnable in tracking output. FromGraph and
	// FromAction set it; empty falls back to the entrypoint name.
	Label string
}

// FromGraph wraps a subgraph as a Runnable halting after the named actions.
func FromGraph(g *api.Graph, haltAfter ...string) Runnable {
	return Runnable{
		Graph:     g,
		HaltAfter: haltAfter,
		Label:     g.Entrypoint(),
	}
}

// FromAction wraps a single action as a one-node subgraph.
func FromAction(a api.Action) Runnable {
	g, err := api.NewGraph([]api.Action{a}, nil, a.Name())
	if err != nil {
		// A single action with no transitions always forms a valid graph.
		panic(fmt.Sprintf("parallel: wrap action %q: %v", a.Name(), err))
	}
	return Runnable{Graph: g, Label: a.Name()}
}

func (r Runnable) entrypoint() string {
	if r.Entrypoint != "" {
		return r.Entrypoint
	}
	return r.Graph.Entrypoint()
}

func (r Runnable) label() string {
	if r.Label != "" {
		return r.Label
	}
	return r.entrypoint()
}

// Task is one unit of parallel work: what to run, the state to run it
// against, and its runtime inputs. ID is assigned by the parallel action
// from the parent identifier, the action name, and the task's position in
// generation order.
type Task struct {
	Index    int
	ID       string
	Runnable Runnable
	State    api.State
	Inputs   api.Inputs
}

// TaskResult pairs a task with its terminal state or failure. Results are
// always delivered to the reducer in generation order, independent of the
// order tasks completed in.
type TaskResult struct {
	Task  Task
	State api.State
	Err   error
}

// Source generates the task list for one parallel execution. state is the
// parent action's read-set view and inputs its runtime inputs.
type Source interface {
	Tasks(ctx context.Context, state api.State, inputs api.Inputs) ([]Task, error)
}

// SourceFunc adapts a function into a Source, for generators that need
// full control (for example per-task runtime inputs).
type SourceFunc func(ctx context.Context, state api.State, inputs api.Inputs) ([]Task, error)

func (f SourceFunc) Tasks(ctx context.Context, state api.State, inputs api.Inputs) ([]Task, error) {
	return f(ctx, state, inputs)
}

// StateGen produces one input State per task.
type StateGen func(ctx context.Context, state api.State, inputs api.Inputs) ([]api.State, error)

// RunnableGen produces one Runnable per task.
type RunnableGen func(ctx context.Context, state api.State, inputs api.Inputs) ([]Runnable, error)

// States fans the same runnable out over varied input states.
func States(r Runnable, gen StateGen) Source {
	return SourceFunc(func(ctx context.Context, state api.State, inputs api.Inputs) ([]Task, error) {
		variants, err := gen(ctx, state, inputs)
		if err != nil {
			return nil, err
		}
		tasks := make([]Task, len(variants))
		for i, s := range variants {
			tasks[i] = Task{Runnable: r, State: s}
		}
		return tasks, nil
	})
}

// Actions fans varied runnables out over the same input state.
func Actions(gen RunnableGen) Source {
	return SourceFunc(func(ctx context.Context, state api.State, inputs api.Inputs) ([]Task, error) {
		runnables, err := gen(ctx, state, inputs)
		if err != nil {
			return nil, err
		}
		tasks := make([]Task, len(runnables))
		for i, r := range runnables {
			tasks[i] = Task{Runnable: r, State: state}
		}
		return tasks, nil
	})
}

// Product generates the full cartesian product of runnables and states,
// runnable-major: for runnables [a, b] and states [x, y] the generation
// order is (a,x), (a,y), (b,x), (b,y).
func Product(actions RunnableGen, states StateGen) Source {
	return SourceFunc(func(ctx context.Context, state api.State, inputs api.Inputs) ([]Task, error) {
		runnables, err := actions(ctx, state, inputs)
		if err != nil {
			return nil, err
		}
		variants, err := states(ctx, state, inputs)
		if err != nil {
			return nil, err
		}
		tasks := make([]Task, 0, len(runnables)*len(variants))
		for _, r := range runnables {
			for _, s := range variants {
				tasks = append(tasks, Task{Runnable: r, State: s})
			}
		}
		return tasks, nil
	})
}
