package parallel

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/skeinflow/skein/internal/engine"
	"github.com/skeinflow/skein/internal/persistence"
	"github.com/skeinflow/skein/pkg/api"
)

// doubler is the child workload used across tests: it doubles "value".
func doubler(delay func(v int) time.Duration) api.Action {
	return api.FromFunc("double", []string{"value"}, []string{"value"},
		func(ctx context.Context, s api.State, in api.Inputs) (api.Result, api.State, error) {
			v := s.GetDefault("value", 0).(int)
			if delay != nil {
				select {
				case <-time.After(delay(v)):
				case <-ctx.Done():
					return nil, s, ctx.Err()
				}
			}
			return api.Result{"value": 2 * v}, s.Set("value", 2*v), nil
		},
	)
}

// valuesSource fans the given runnable out over one child state per item.
func valuesSource(r Runnable) Source {
	return States(r, func(ctx context.Context, s api.State, in api.Inputs) ([]api.State, error) {
		items, err := s.Get("items")
		if err != nil {
			return nil, err
		}
		states := make([]api.State, 0, len(items.([]any)))
		for _, item := range items.([]any) {
			states = append(states, api.NewState(map[string]any{"value": item.(int)}))
		}
		return states, nil
	})
}

// orderedSum reduces child values in delivery order.
func orderedSum(ctx context.Context, parent api.State, results []TaskResult) (api.Result, api.State, error) {
	total := 0
	var order []any
	for _, r := range results {
		if r.Err != nil {
			return nil, parent, r.Err
		}
		v, err := r.State.Get("value")
		if err != nil {
			return nil, parent, err
		}
		total += v.(int)
		order = append(order, v)
	}
	next := parent.Set("total", total)
	next, err := next.Append("order", order...)
	if err != nil {
		return nil, parent, err
	}
	return api.Result{"total": total}, next, nil
}

// parentApp wraps a parallel action as a single-node application.
func parentApp(t *testing.T, fan api.Action, items []any, cfg engine.Config) *engine.Application {
	t.Helper()

	g, err := api.NewGraph([]api.Action{fan}, nil, fan.Name())
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}
	cfg.Graph = g
	if cfg.AppID == "" {
		cfg.AppID = "parent-1"
	}
	cfg.State = api.NewState(map[string]any{"items": items})
	return engine.New(cfg)
}

func TestMapReduceOrderIndependentOfCompletion(t *testing.T) {
	// Later tasks finish first; reduction order must still follow
	// generation order.
	fan := MapReduce(Config{
		Name:   "fan",
		Reads:  []string{"items"},
		Writes: []string{"total", "order"},
		Source: valuesSource(FromAction(doubler(func(v int) time.Duration {
			return time.Duration(50-v) * time.Millisecond
		}))),
		Reducer:  orderedSum,
		Executor: Pool(0),
	})

	app := parentApp(t, fan, []any{1, 2, 3, 4, 5}, engine.Config{})
	rr, err := app.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if total, _ := rr.State.Get("total"); total != 30 {
		t.Fatalf("expected total=30, got %v", total)
	}
	order, _ := rr.State.Get("order")
	if fmt.Sprint(order) != "[2 4 6 8 10]" {
		t.Fatalf("reduction order must match generation order, got %v", order)
	}
}

func TestMapReduceSerialExecutor(t *testing.T) {
	fan := MapReduce(Config{
		Name:     "fan",
		Reads:    []string{"items"},
		Writes:   []string{"total", "order"},
		Source:   valuesSource(FromAction(doubler(nil))),
		Reducer:  orderedSum,
		Executor: Serial(),
	})

	app := parentApp(t, fan, []any{3, 4}, engine.Config{})
	rr, err := app.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if total, _ := rr.State.Get("total"); total != 14 {
		t.Fatalf("expected total=14, got %v", total)
	}
}

func TestMapReduceStableChildIDs(t *testing.T) {
	store := persistence.NewMemory()

	fan := MapReduce(Config{
		Name:    "fan",
		Reads:   []string{"items"},
		Writes:  []string{"total", "order"},
		Source:  valuesSource(FromAction(doubler(nil))),
		Reducer: orderedSum,
	})

	app := parentApp(t, fan, []any{7, 8}, engine.Config{
		AppID:        "parent-1",
		PartitionKey: "p",
		Persister:    store,
	})
	if _, err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// The persister cascades to children under deterministic IDs derived
	// from parent ID, action name, and task index.
	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("parent-1:fan:%d", i)
		chk, err := store.Load(context.Background(), id, "p")
		if err != nil || chk == nil {
			t.Fatalf("expected checkpoint for child %s, got %+v err=%v", id, chk, err)
		}
		if chk.Status != api.StatusHalted {
			t.Fatalf("child %s should have finished, status=%v", id, chk.Status)
		}
	}
}

func TestMapReduceDisableCascade(t *testing.T) {
	store := persistence.NewMemory()

	fan := MapReduce(Config{
		Name:           "fan",
		Reads:          []string{"items"},
		Writes:         []string{"total", "order"},
		Source:         valuesSource(FromAction(doubler(nil))),
		Reducer:        orderedSum,
		DisableCascade: true,
	})

	app := parentApp(t, fan, []any{1}, engine.Config{
		AppID:     "parent-1",
		Persister: store,
	})
	if _, err := app.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Only the parent's own checkpoint exists.
	if store.Len() != 1 {
		t.Fatalf("expected 1 checkpoint with cascade disabled, got %d", store.Len())
	}
}

func TestMapReduceFailFast(t *testing.T) {
	boom := errors.New("task exploded")
	bomb := api.FromFunc("bomb", []string{"value"}, nil,
		func(ctx context.Context, s api.State, in api.Inputs) (api.Result, api.State, error) {
			v, _ := s.Get("value")
			if v == 2 {
				return nil, s, boom
			}
			// Everyone else blocks until cancelled.
			<-ctx.Done()
			return nil, s, ctx.Err()
		},
	)

	fan := MapReduce(Config{
		Name:    "fan",
		Reads:   []string{"items"},
		Writes:  nil,
		Source:  valuesSource(FromAction(bomb)),
		Reducer: orderedSum,
	})

	app := parentApp(t, fan, []any{1, 2, 3}, engine.Config{})
	_, err := app.Run(context.Background())
	if err == nil {
		t.Fatal("expected fail-fast error")
	}

	var taskErr *api.TaskError
	if !errors.As(err, &taskErr) {
		t.Fatalf("expected *TaskError, got %v", err)
	}
	if taskErr.TaskID != "parent-1:fan:1" {
		t.Fatalf("expected failing task ID parent-1:fan:1, got %q", taskErr.TaskID)
	}
	if !errors.Is(err, boom) {
		t.Fatal("cause must be reachable through Unwrap")
	}
}

func TestMapReduceCollectErrors(t *testing.T) {
	boom := errors.New("partial failure")
	shaky := api.FromFunc("shaky", []string{"value"}, []string{"value"},
		func(ctx context.Context, s api.State, in api.Inputs) (api.Result, api.State, error) {
			v, _ := s.Get("value")
			if v == 2 {
				return nil, s, boom
			}
			return nil, s, nil
		},
	)

	fan := MapReduce(Config{
		Name:   "fan",
		Reads:  []string{"items"},
		Writes: []string{"succeeded", "failed"},
		Source: valuesSource(FromAction(shaky)),
		Reducer: func(ctx context.Context, parent api.State, results []TaskResult) (api.Result, api.State, error) {
			succeeded, failed := 0, 0
			for _, r := range results {
				if r.Err != nil {
					failed++
					continue
				}
				succeeded++
			}
			next := parent.Set("succeeded", succeeded).Set("failed", failed)
			return nil, next, nil
		},
		ErrorMode: CollectErrors,
	})

	app := parentApp(t, fan, []any{1, 2, 3}, engine.Config{})
	rr, err := app.Run(context.Background())
	if err != nil {
		t.Fatalf("collect-errors run should succeed: %v", err)
	}
	if v, _ := rr.State.Get("succeeded"); v != 2 {
		t.Fatalf("expected 2 successes, got %v", v)
	}
	if v, _ := rr.State.Get("failed"); v != 1 {
		t.Fatalf("expected 1 failure, got %v", v)
	}
}

func TestMapReduceSubgraphChildren(t *testing.T) {
	// Children run a two-action subgraph, not a single action.
	inc := api.FromFunc("inc", []string{"value"}, []string{"value"},
		func(ctx context.Context, s api.State, in api.Inputs) (api.Result, api.State, error) {
			v := s.GetDefault("value", 0).(int)
			return nil, s.Set("value", v+1), nil
		},
	)
	square := api.FromFunc("square", []string{"value"}, []string{"value"},
		func(ctx context.Context, s api.State, in api.Inputs) (api.Result, api.State, error) {
			v := s.GetDefault("value", 0).(int)
			return nil, s.Set("value", v*v), nil
		},
	)
	sub, err := api.NewGraph(
		[]api.Action{inc, square},
		[]api.Transition{api.NewTransition("inc", "square", api.Default())},
		"inc",
	)
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}

	fan := MapReduce(Config{
		Name:    "fan",
		Reads:   []string{"items"},
		Writes:  []string{"total", "order"},
		Source:  valuesSource(FromGraph(sub)),
		Reducer: orderedSum,
	})

	app := parentApp(t, fan, []any{1, 2}, engine.Config{})
	rr, err := app.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// (1+1)^2 + (2+1)^2
	if total, _ := rr.State.Get("total"); total != 13 {
		t.Fatalf("expected total=13, got %v", total)
	}
}

func TestProductGeneratesRunnableMajorOrder(t *testing.T) {
	inc := FromAction(api.FromFunc("inc", []string{"value"}, []string{"value"},
		func(ctx context.Context, s api.State, in api.Inputs) (api.Result, api.State, error) {
			return nil, s.Set("value", s.GetDefault("value", 0).(int)+1), nil
		},
	))
	negate := FromAction(api.FromFunc("negate", []string{"value"}, []string{"value"},
		func(ctx context.Context, s api.State, in api.Inputs) (api.Result, api.State, error) {
			return nil, s.Set("value", -s.GetDefault("value", 0).(int)), nil
		},
	))

	src := Product(
		func(ctx context.Context, s api.State, in api.Inputs) ([]Runnable, error) {
			return []Runnable{inc, negate}, nil
		},
		func(ctx context.Context, s api.State, in api.Inputs) ([]api.State, error) {
			return []api.State{
				api.NewState(map[string]any{"value": 10}),
				api.NewState(map[string]any{"value": 20}),
			}, nil
		},
	)

	fan := MapReduce(Config{
		Name:   "fan",
		Writes: []string{"order"},
		Source: src,
		Reducer: func(ctx context.Context, parent api.State, results []TaskResult) (api.Result, api.State, error) {
			var order []any
			for _, r := range results {
				if r.Err != nil {
					return nil, parent, r.Err
				}
				v, _ := r.State.Get("value")
				order = append(order, v)
			}
			next, err := parent.Append("order", order...)
			if err != nil {
				return nil, parent, err
			}
			return nil, next, nil
		},
		Executor: Serial(),
	})

	g, err := api.NewGraph([]api.Action{fan}, nil, "fan")
	if err != nil {
		t.Fatalf("NewGraph failed: %v", err)
	}
	app := engine.New(engine.Config{Graph: g, AppID: "parent-1"})

	rr, err := app.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	order, _ := rr.State.Get("order")
	if fmt.Sprint(order) != "[11 21 -10 -20]" {
		t.Fatalf("expected runnable-major order [11 21 -10 -20], got %v", order)
	}
}

func TestMapReduceResumesFinishedChildren(t *testing.T) {
	store := persistence.NewMemory()

	runs := 0
	countingWorker := api.FromFunc("count", []string{"value"}, []string{"value"},
		func(ctx context.Context, s api.State, in api.Inputs) (api.Result, api.State, error) {
			runs++
			return nil, s.Set("value", 1), nil
		},
	)
	newFan := func() api.Action {
		return MapReduce(Config{
			Name:     "fan",
			Reads:    []string{"items"},
			Writes:   []string{"total", "order"},
			Source:   valuesSource(FromAction(countingWorker)),
			Reducer:  orderedSum,
			Executor: Serial(),
		})
	}

	run := func() {
		t.Helper()
		app := parentApp(t, newFan(), []any{1, 2}, engine.Config{
			AppID:     "parent-1",
			Persister: store,
		})
		if _, err := app.Run(context.Background()); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	}

	run()
	if runs != 2 {
		t.Fatalf("expected 2 child executions, got %d", runs)
	}

	// Simulate a crashed parent re-running its fan-out: finished children
	// are picked up from their checkpoints, not re-executed.
	_ = store.Delete(context.Background(), "parent-1", "")
	run()
	if runs != 2 {
		t.Fatalf("finished children must not re-run, got %d executions", runs)
	}
}

func TestFromActionPanicUnreachableForValidAction(t *testing.T) {
	r := FromAction(doubler(nil))
	if r.Graph.Entrypoint() != "double" {
		t.Fatalf("expected entrypoint double, got %q", r.Graph.Entrypoint())
	}
	if r.label() != "double" {
		t.Fatalf("expected label double, got %q", r.label())
	}
}

func TestMapReduceMissingConfigPanics(t *testing.T) {
	src := valuesSource(FromAction(doubler(nil)))
	red := orderedSum

	for name, build := range map[string]func(){
		"no name":    func() { MapReduce(Config{Source: src, Reducer: red}) },
		"no source":  func() { MapReduce(Config{Name: "fan", Reducer: red}) },
		"no reducer": func() { MapReduce(Config{Name: "fan", Source: src}) },
	} {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic")
				}
			}()
			build()
		})
	}
}
