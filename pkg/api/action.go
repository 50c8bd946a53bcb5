package api

import (
	"context"
	"fmt"
)

// Inputs carries per-invocation runtime values for an action. They are
// supplied by the caller of Step/Run and are not stored in State.
type Inputs map[string]any

// Result is the auxiliary output mapping produced by one action execution,
// reported to hooks and trackers alongside the new State.
type Result map[string]any

// Action is one named computation step in a graph. Actions are stateless:
// each invocation is independent and receives a read-set projection of the
// application State.
//
// An action must only change or delete fields listed in Writes; the engine
// rejects the step with *UndeclaredWriteError otherwise.
type Action interface {
	// Name uniquely identifies the action within a Graph.
	Name() string

	// Reads lists the state fields the action may observe.
	Reads() []string

	// Writes lists the state fields the action may change or delete.
	Writes() []string

	// Inputs lists required runtime-input names. A Step reaching this
	// action without all of them halts awaiting input.
	Inputs() []string

	// Run executes the action against a read-set view of the state and
	// returns a result mapping plus the updated view.
	Run(ctx context.Context, state State, inputs Inputs) (Result, State, error)
}

// Emit publishes one partial result from a streaming action. It returns an
// error when the consumer has gone away (stream closed or ctx cancelled);
// the action should stop producing and return promptly.
type Emit func(Result) error

// StreamingAction is an Action that can additionally yield partial results
// while it executes. The final (Result, State) pair is the return value of
// RunStream: returning is the explicit terminal signal, so no intermediate
// item ever carries state.
//
// Every StreamingAction still implements Run, so consumers that want a
// single atomic result need no special handling; conversely the engine
// presents plain actions as one-item streams. The two paths must agree:
// collecting a stream yields exactly what Run would have returned.
type StreamingAction interface {
	Action
	RunStream(ctx context.Context, state State, inputs Inputs, emit Emit) (Result, State, error)
}

// ActionFunc is the function shape behind FromFunc.
type ActionFunc func(ctx context.Context, state State, inputs Inputs) (Result, State, error)

// StreamFunc is the function shape behind StreamingFromFunc.
type StreamFunc func(ctx context.Context, state State, inputs Inputs, emit Emit) (Result, State, error)

// ActionOption configures an action built by FromFunc or StreamingFromFunc.
type ActionOption func(*funcAction)

// WithRequiredInputs declares required runtime-input names for the action.
func WithRequiredInputs(names ...string) ActionOption {
	return func(a *funcAction) {
		a.inputs = append(a.inputs, names...)
	}
}

// FromFunc builds an atomic action from a function and its declared
// read/write sets. Name, reads and writes are fixed at construction; an
// empty name or nil function is a programmer error and panics.
func FromFunc(name string, reads, writes []string, fn ActionFunc, opts ...ActionOption) Action {
	a := newFuncAction(name, reads, writes, fn, opts)
	return a
}

// StreamingFromFunc builds a streaming action. fn receives an emit callback
// for partial results and returns the final (Result, State) pair. The
// returned action's Run executes fn with partials discarded, keeping the
// atomic and streaming paths equivalent by construction.
func StreamingFromFunc(name string, reads, writes []string, fn StreamFunc, opts ...ActionOption) StreamingAction {
	atomic := func(ctx context.Context, state State, inputs Inputs) (Result, State, error) {
		return fn(ctx, state, inputs, func(Result) error { return nil })
	}
	a := newFuncAction(name, reads, writes, atomic, opts)
	return &streamingFuncAction{funcAction: a, stream: fn}
}

func newFuncAction(name string, reads, writes []string, fn ActionFunc, opts []ActionOption) *funcAction {
	if name == "" {
		panic("skein: action name must not be empty")
	}
	if fn == nil {
		panic(fmt.Sprintf("skein: action %q has nil function", name))
	}
	a := &funcAction{
		name:   name,
		reads:  append([]string(nil), reads...),
		writes: append([]string(nil), writes...),
		fn:     fn,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type funcAction struct {
	name   string
	reads  []string
	writes []string
	inputs []string
	fn     ActionFunc
}

func (a *funcAction) Name() string     { return a.name }
func (a *funcAction) Reads() []string  { return a.reads }
func (a *funcAction) Writes() []string { return a.writes }
func (a *funcAction) Inputs() []string { return a.inputs }

func (a *funcAction) Run(ctx context.Context, state State, inputs Inputs) (Result, State, error) {
	return a.fn(ctx, state, inputs)
}

type streamingFuncAction struct {
	*funcAction
	stream StreamFunc
}

func (a *streamingFuncAction) RunStream(ctx context.Context, state State, inputs Inputs, emit Emit) (Result, State, error) {
	return a.stream(ctx, state, inputs, emit)
}

// Bind partially applies an action: the returned action carries the new name
// and fills the bound parameters into its runtime inputs on every invocation.
// Bound names disappear from the required-input list, which is how one
// generic action is attached to a graph as several differently-configured
// nodes. Per-invocation inputs with the same name win over bound values.
func Bind(action Action, name string, params Inputs) Action {
	if name == "" {
		panic("skein: bound action name must not be empty")
	}
	remaining := make([]string, 0, len(action.Inputs()))
	for _, in := range action.Inputs() {
		if _, bound := params[in]; !bound {
			remaining = append(remaining, in)
		}
	}
	bound := &boundAction{
		inner:  action,
		name:   name,
		params: params,
		inputs: remaining,
	}
	if sa, ok := action.(StreamingAction); ok {
		return &boundStreamingAction{boundAction: bound, inner: sa}
	}
	return bound
}

type boundAction struct {
	inner  Action
	name   string
	params Inputs
	inputs []string
}

func (b *boundAction) Name() string     { return b.name }
func (b *boundAction) Reads() []string  { return b.inner.Reads() }
func (b *boundAction) Writes() []string { return b.inner.Writes() }
func (b *boundAction) Inputs() []string { return b.inputs }

func (b *boundAction) merged(inputs Inputs) Inputs {
	merged := make(Inputs, len(b.params)+len(inputs))
	for k, v := range b.params {
		merged[k] = v
	}
	for k, v := range inputs {
		merged[k] = v
	}
	return merged
}

func (b *boundAction) Run(ctx context.Context, state State, inputs Inputs) (Result, State, error) {
	return b.inner.Run(ctx, state, b.merged(inputs))
}

type boundStreamingAction struct {
	*boundAction
	inner StreamingAction
}

func (b *boundStreamingAction) RunStream(ctx context.Context, state State, inputs Inputs, emit Emit) (Result, State, error) {
	return b.inner.RunStream(ctx, state, b.merged(inputs), emit)
}
