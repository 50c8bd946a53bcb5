// Package engine implements the application run loop: single-step
// advancement, run-to-completion with halt conditions, streaming execution,
// hook and tracker dispatch, and the persistence cascade. External callers
// construct applications through the root package builder.
package engine

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/skeinflow/skein/pkg/api"
)

// Config describes how to construct an Application. Only used inside this
// module; external callers use the root package builder.
type Config struct {
	Graph        *api.Graph
	State        api.State
	Position     string // next action; defaults to the graph entrypoint
	Finished     bool   // resumed application already reached a terminal action
	AppID        string
	PartitionKey string
	ParentID     string
	Sequence     int64
	Hooks        []api.Hooks
	Tracker      api.Tracker
	Persister    api.Persister
	Registry     *api.SerdeRegistry
	Executor     any
}

// Application is the engine's api.Application implementation. It advances
// strictly sequentially; the sequence counter is authoritative and increases
// by exactly one per executed action.
type Application struct {
	graph   *api.Graph
	state   api.State
	pointer string // next action name; "" means halted
	seq     int64

	info      api.AppInfo
	hooks     []api.Hooks
	tracker   api.Tracker
	persister api.Persister
	registry  *api.SerdeRegistry
	executor  any
}

var _ api.Application = (*Application)(nil)

// New assembles an Application from a validated Config. Graph validation
// has already happened in the builder.
func New(cfg Config) *Application {
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = api.NoopTracker{}
	}
	position := cfg.Position
	if position == "" && !cfg.Finished {
		position = cfg.Graph.Entrypoint()
	}
	return &Application{
		graph:   cfg.Graph,
		state:   cfg.State,
		pointer: position,
		seq:     cfg.Sequence,
		info: api.AppInfo{
			AppID:        cfg.AppID,
			PartitionKey: cfg.PartitionKey,
			ParentID:     cfg.ParentID,
			Entrypoint:   cfg.Graph.Entrypoint(),
		},
		hooks:     cfg.Hooks,
		tracker:   tracker,
		persister: cfg.Persister,
		registry:  cfg.Registry,
		executor:  cfg.Executor,
	}
}

// Halted marks a resumed application whose run had already finished.
const Halted = ""

func (a *Application) State() api.State  { return a.state }
func (a *Application) Graph() *api.Graph { return a.graph }
func (a *Application) Info() api.AppInfo { return a.info }
func (a *Application) Sequence() int64   { return a.seq }

// Next returns the pending action, or ok=false when halted.
func (a *Application) Next() (api.Action, bool) {
	if a.pointer == Halted {
		return nil, false
	}
	action, ok := a.graph.Action(a.pointer)
	return action, ok
}

// Step executes exactly one action. See api.Application.
func (a *Application) Step(ctx context.Context, inputs api.Inputs) (*api.StepResult, error) {
	action, ok := a.Next()
	if !ok {
		return nil, api.ErrHalted
	}
	if missing := missingInputs(action, inputs); len(missing) > 0 {
		return nil, &api.MissingInputsError{Action: action.Name(), Missing: missing}
	}
	return a.step(ctx, action, inputs)
}

// Run steps repeatedly until a halt condition is reached. See
// api.Application.
func (a *Application) Run(ctx context.Context, opts ...api.RunOption) (result *api.RunResult, err error) {
	var o api.RunOptions
	for _, opt := range opts {
		opt(&o)
	}

	a.tracker.OnSpanStart(ctx, a.info, "run")
	defer a.tracker.OnSpanEnd(ctx, a.info, "run")
	for _, h := range a.hooks {
		if h.PreRun != nil {
			h.PreRun(ctx, a.info)
		}
	}
	defer func() {
		for _, h := range a.hooks {
			if h.PostRun != nil {
				h.PostRun(ctx, a.info, err)
			}
		}
	}()

	var last *api.StepResult
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		action, ok := a.Next()
		if !ok {
			// The application terminated. Reaching this point without
			// having executed anything means the caller ran an
			// already-finished application; surface that instead of
			// returning stale results.
			if last == nil {
				return nil, api.ErrNoProgress
			}
			return &api.RunResult{
				Action: last.Action,
				Result: last.Result,
				State:  a.state,
				Reason: api.HaltTerminal,
			}, nil
		}

		if contains(o.HaltBefore, action.Name()) {
			return &api.RunResult{
				Action: action.Name(),
				State:  a.state,
				Reason: api.HaltBefore,
			}, nil
		}

		if missing := missingInputs(action, o.Inputs); len(missing) > 0 {
			// Awaiting external input: a pause, not a failure.
			return &api.RunResult{
				Action:  action.Name(),
				State:   a.state,
				Reason:  api.HaltMissingInputs,
				Missing: missing,
			}, nil
		}

		sr, stepErr := a.step(ctx, action, o.Inputs)
		if stepErr != nil {
			var noTransition *api.NoTransitionError
			if errors.As(stepErr, &noTransition) {
				// The action ran and its writes are committed; the
				// modeling gap is reported alongside the produced state.
				return &api.RunResult{
					Action: sr.Action,
					Result: sr.Result,
					State:  a.state,
					Reason: api.HaltNoTransition,
				}, stepErr
			}
			return nil, stepErr
		}
		last = sr

		if contains(o.HaltAfter, sr.Action) {
			return &api.RunResult{
				Action: sr.Action,
				Result: sr.Result,
				State:  a.state,
				Reason: api.HaltAfter,
			}, nil
		}
	}
}

// Stream runs until the pointer reaches an action listed in halt-after,
// then executes that action in streaming mode. See api.Application.
func (a *Application) Stream(ctx context.Context, opts ...api.RunOption) (*api.Stream, error) {
	var o api.RunOptions
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.HaltAfter) == 0 {
		return nil, fmt.Errorf("stream: at least one halt-after action is required")
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		action, ok := a.Next()
		if !ok {
			return nil, api.ErrHalted
		}
		if missing := missingInputs(action, o.Inputs); len(missing) > 0 {
			return nil, &api.MissingInputsError{Action: action.Name(), Missing: missing}
		}
		if contains(o.HaltAfter, action.Name()) {
			return a.streamStep(ctx, action, o.Inputs), nil
		}

		if _, err := a.step(ctx, action, o.Inputs); err != nil {
			return nil, err
		}
	}
}

// step executes one action atomically: projection, execution, write-set
// check, commit, transition resolution, checkpoint. Post-step hooks and the
// tracker's step-end event always fire, even when the action fails, so
// telemetry is never lost; on failure State and pointer keep their pre-step
// values.
func (a *Application) step(ctx context.Context, action api.Action, inputs api.Inputs) (*api.StepResult, error) {
	seq := a.seq
	view := a.state.Subset(action.Reads()...)
	actx := a.actionContext(ctx)

	start := api.StepStartEvent{
		App:      a.info,
		Action:   action.Name(),
		Sequence: seq,
		Inputs:   inputs,
		State:    view,
	}
	a.tracker.OnStepStart(ctx, start)
	for _, h := range a.hooks {
		if h.PreStep != nil {
			h.PreStep(ctx, start)
		}
	}

	began := time.Now()
	result, post, runErr := action.Run(actx, view, inputs)
	duration := time.Since(began)

	err := runErr
	if err == nil {
		err = a.commit(ctx, action, view, post)
	}

	end := api.StepEndEvent{
		App:      a.info,
		Action:   action.Name(),
		Sequence: seq,
		Result:   result,
		State:    a.state,
		Err:      err,
		Duration: duration,
	}
	a.tracker.OnStepEnd(ctx, end)
	for _, h := range a.hooks {
		if h.PostStep != nil {
			h.PostStep(ctx, end)
		}
	}

	if runErr != nil {
		// User action code failed: State and pointer are untouched, so a
		// later Step retries the same action. The failure is still
		// checkpointed for external observability.
		actionErr := &api.ActionError{Action: action.Name(), Sequence: seq, Err: runErr}
		if perr := a.persist(ctx, api.StatusFailed); perr != nil {
			return nil, errors.Join(actionErr, perr)
		}
		return nil, actionErr
	}
	if err != nil {
		var noTransition *api.NoTransitionError
		if errors.As(err, &noTransition) {
			// commit already applied the action's writes; report the
			// resolution gap with the produced result attached.
			return &api.StepResult{
				Action:   action.Name(),
				Result:   result,
				State:    a.state,
				Sequence: a.seq,
			}, err
		}
		// Undeclared write, condition key lookup, or checkpoint save.
		return nil, err
	}

	return &api.StepResult{
		Action:   action.Name(),
		Result:   result,
		State:    a.state,
		Sequence: a.seq,
	}, nil
}

// commit validates the action's delta against its declared write-set,
// applies it to the full state, advances sequence and pointer, and saves a
// checkpoint. It is only called when the action itself succeeded.
func (a *Application) commit(ctx context.Context, action api.Action, view, post api.State) error {
	updated, deleted, violations := delta(action, view, post)
	if len(violations) > 0 {
		return &api.UndeclaredWriteError{Action: action.Name(), Keys: violations}
	}

	next := a.state
	if len(updated) > 0 {
		next = next.Update(updated)
	}
	if len(deleted) > 0 {
		next = next.Remove(deleted...)
	}

	a.state = next
	a.seq++

	to, ok, err := a.graph.Resolve(action.Name(), a.state)
	if err != nil {
		// Both the missing-key and no-transition cases halt the pointer;
		// the committed state stays observable either way.
		a.pointer = Halted
		if perr := a.persist(ctx, a.status()); perr != nil {
			return perr
		}
		return err
	}
	if !ok {
		a.pointer = Halted
	} else {
		a.pointer = to
	}
	return a.persist(ctx, a.status())
}

// streamStep executes one action in streaming mode. The commit (and with it
// hooks, tracker events and the checkpoint) runs when the stream's terminal
// item is produced; a stream closed early leaves the application untouched.
func (a *Application) streamStep(ctx context.Context, action api.Action, inputs api.Inputs) *api.Stream {
	seq := a.seq
	view := a.state.Subset(action.Reads()...)
	actx := a.actionContext(ctx)

	start := api.StepStartEvent{
		App:      a.info,
		Action:   action.Name(),
		Sequence: seq,
		Inputs:   inputs,
		State:    view,
	}
	a.tracker.OnStepStart(ctx, start)
	for _, h := range a.hooks {
		if h.PreStep != nil {
			h.PreStep(ctx, start)
		}
	}
	a.tracker.OnStreamInit(ctx, api.StreamEvent{App: a.info, Action: action.Name()})

	began := time.Now()
	return api.StartStream(actx, action, view, inputs, api.StreamConfig{
		OnFirstItem: func() {
			a.tracker.OnStreamFirstItem(ctx, api.StreamEvent{App: a.info, Action: action.Name()})
		},
		Commit: func(result api.Result, post api.State, err error) error {
			if err == nil {
				err = a.commit(ctx, action, view, post)
			}

			end := api.StepEndEvent{
				App:      a.info,
				Action:   action.Name(),
				Sequence: seq,
				Result:   result,
				State:    a.state,
				Err:      err,
				Duration: time.Since(began),
			}
			a.tracker.OnStepEnd(ctx, end)
			for _, h := range a.hooks {
				if h.PostStep != nil {
					h.PostStep(ctx, end)
				}
			}
			a.tracker.OnStreamEnd(ctx, api.StreamEvent{App: a.info, Action: action.Name(), Err: err})
			return err
		},
	})
}

func (a *Application) actionContext(ctx context.Context) context.Context {
	return api.WithAppContext(ctx, api.AppContext{
		App:       a.info,
		Sequence:  a.seq,
		Tracker:   a.tracker,
		Persister: a.persister,
		Registry:  a.registry,
		Executor:  a.executor,
	})
}

func (a *Application) status() api.Status {
	if a.pointer == Halted {
		return api.StatusHalted
	}
	return api.StatusRunning
}

func (a *Application) persist(ctx context.Context, status api.Status) error {
	if a.persister == nil {
		return nil
	}
	chk := &api.Checkpoint{
		AppID:        a.info.AppID,
		PartitionKey: a.info.PartitionKey,
		Sequence:     a.seq,
		Position:     a.pointer,
		State:        a.state,
		Status:       status,
		UpdatedAt:    time.Now(),
	}
	if err := a.persister.Save(ctx, chk); err != nil {
		return fmt.Errorf("save checkpoint for %s: %w", a.info.AppID, err)
	}
	return nil
}

// delta compares the read-set view handed to an action with the state it
// returned. It reports updated fields, deleted fields, and any touched
// field missing from the declared write-set.
func delta(action api.Action, view, post api.State) (updated map[string]any, deleted []string, violations []string) {
	writes := make(map[string]bool, len(action.Writes()))
	for _, w := range action.Writes() {
		writes[w] = true
	}

	updated = make(map[string]any)
	for _, k := range post.Keys() {
		after, _ := post.Get(k)
		before, hadBefore := viewValue(view, k)
		if hadBefore && reflect.DeepEqual(before, after) {
			continue
		}
		if !writes[k] {
			violations = append(violations, k)
			continue
		}
		updated[k] = after
	}
	for _, k := range view.Keys() {
		if post.Has(k) {
			continue
		}
		if !writes[k] {
			violations = append(violations, k)
			continue
		}
		deleted = append(deleted, k)
	}
	return updated, deleted, violations
}

func viewValue(view api.State, key string) (any, bool) {
	if !view.Has(key) {
		return nil, false
	}
	v, _ := view.Get(key)
	return v, true
}

func missingInputs(action api.Action, supplied api.Inputs) []string {
	var missing []string
	for _, name := range action.Inputs() {
		if _, ok := supplied[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
