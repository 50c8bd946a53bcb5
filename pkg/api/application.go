package api

import "context"

// HaltReason explains why a Run returned control to the caller.
type HaltReason string

const (
	// HaltTerminal: the last executed action has no outgoing transitions;
	// the application is finished.
	HaltTerminal HaltReason = "terminal"

	// HaltBefore: the pointer reached an action listed in halt-before.
	// The action was not executed; control returns for human-in-the-loop
	// input before it runs.
	HaltBefore HaltReason = "halt_before"

	// HaltAfter: an action listed in halt-after just completed.
	HaltAfter HaltReason = "halt_after"

	// HaltMissingInputs: the pointer reached an action whose required
	// runtime inputs were not supplied. Nothing was executed; the
	// application is paused awaiting input, not failed.
	HaltMissingInputs HaltReason = "missing_inputs"

	// HaltNoTransition: the last executed action committed its writes but
	// none of its outgoing conditions matched the resulting state. Run
	// reports this together with a *NoTransitionError.
	HaltNoTransition HaltReason = "no_transition"
)

// StepResult reports one executed action.
type StepResult struct {
	Action   string
	Result   Result
	State    State
	Sequence int64
}

// RunResult reports where a Run stopped. Action names the last executed
// action, except for HaltBefore/HaltMissingInputs where it names the
// pending, not-yet-executed action. Missing lists the absent runtime inputs
// when Reason is HaltMissingInputs.
type RunResult struct {
	Action  string
	Result  Result
	State   State
	Reason  HaltReason
	Missing []string
}

// RunOptions collects the optional arguments to Run and Stream.
type RunOptions struct {
	HaltBefore []string
	HaltAfter  []string
	Inputs     Inputs
}

// RunOption configures a Run or Stream call.
type RunOption func(*RunOptions)

// WithHaltBefore stops the run before executing any of the named actions.
func WithHaltBefore(actions ...string) RunOption {
	return func(o *RunOptions) {
		o.HaltBefore = append(o.HaltBefore, actions...)
	}
}

// WithHaltAfter stops the run after any of the named actions completes.
func WithHaltAfter(actions ...string) RunOption {
	return func(o *RunOptions) {
		o.HaltAfter = append(o.HaltAfter, actions...)
	}
}

// WithInputs supplies runtime inputs for actions reached during the run.
func WithInputs(inputs Inputs) RunOption {
	return func(o *RunOptions) {
		if o.Inputs == nil {
			o.Inputs = make(Inputs, len(inputs))
		}
		for k, v := range inputs {
			o.Inputs[k] = v
		}
	}
}

// Application is a running instance of a graph: the graph, the current
// State, and the pointer to the next action. Applications advance strictly
// sequentially; a single instance is not safe for concurrent Step calls.
// Concurrency is achieved by running independent Application instances, as
// the parallel subsystem does.
type Application interface {
	// Step executes exactly one action from the current pointer, commits
	// its state delta, resolves the next transition and advances the
	// pointer. On an action error the wrapped *ActionError is returned
	// and State and pointer keep their pre-step values.
	Step(ctx context.Context, inputs Inputs) (*StepResult, error)

	// Run steps repeatedly until a halt condition from opts is reached,
	// the application terminates, or an error occurs. A *NoTransitionError
	// is returned together with a non-nil RunResult carrying the state
	// produced by the action that just ran.
	Run(ctx context.Context, opts ...RunOption) (*RunResult, error)

	// Stream runs until it reaches an action listed in halt-after, then
	// executes that action in streaming mode and returns its Stream.
	// State, pointer and persistence commit when the stream's terminal
	// item is produced; a stream closed early commits nothing.
	Stream(ctx context.Context, opts ...RunOption) (*Stream, error)

	// State returns the current state snapshot.
	State() State

	// Next returns the action the pointer designates, or ok=false when
	// the application has halted.
	Next() (Action, bool)

	// Graph returns the shared, read-only topology.
	Graph() *Graph

	// Info returns the application's identity.
	Info() AppInfo

	// Sequence returns the number of actions executed so far.
	Sequence() int64
}
