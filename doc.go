// Package skein provides a lightweight, embeddable state-machine engine
// for Go. Applications are directed graphs of actions that read and write
// declared slices of an immutable, versioned state, advanced one step at a
// time under the caller's control.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. State
//  2. Action
//  3. Graph
//  4. Application
//  5. Persister and Tracker
//
// # State
//
// State is an immutable key-value snapshot. Every mutating operation
// (Set, Update, Append, Remove, Merge) returns a new State with a higher
// version; existing references never change underneath their holders.
// Actions receive only the subset of fields they declared in their
// read-set, and may only touch fields in their write-set.
//
// # Action
//
// An Action is the executable unit: a name, a read-set, a write-set,
// optional required runtime inputs, and a Run function. Build actions
// from plain functions with FromFunc, or implement the interface
// directly. Streaming actions additionally emit intermediate results
// through a callback before returning their final result.
//
// # Graph
//
// A Graph binds actions together with ordered, condition-guarded
// transitions. Construction validates the whole shape up front: unknown
// endpoints, a missing entrypoint, unreachable actions, and a default
// transition followed by further transitions from the same source are all
// build-time errors, never runtime surprises.
//
// # Application
//
// An Application is one run of a graph over a state: a pointer to the
// next action plus a strictly increasing sequence counter. Step executes
// exactly one action; Run loops until a terminal action, a configured
// halt condition, or a missing runtime input; Stream runs up to a chosen
// action and hands back its intermediate results one at a time.
// Applications are built with the Builder:
//
//	app, err := skein.NewApplication().
//	    WithActions(counter, done).
//	    WithTransitions(
//	        skein.NewTransition("counter", "counter", skein.Expr("below", []string{"n"}, belowLimit)),
//	        skein.NewTransition("counter", "done", skein.Default()),
//	    ).
//	    WithEntrypoint("counter").
//	    WithState(skein.NewState(map[string]any{"n": 0})).
//	    Build(ctx)
//
// # Persistence and Tracking
//
// A Persister checkpoints position, sequence, and state after every
// committed step; building an application with the same identifier
// resumes it from its last checkpoint. In-memory, SQLite, and Redis
// persisters ship with the module. A Tracker observes step lifecycle
// events for logging or metrics; see NewLoggingTracker, the Metrics
// collector, and the pkg/metrics Prometheus tracker.
//
// # Parallelism
//
// The pkg/parallel package fans independent sub-computations out as child
// applications with stable identifiers and reduces their terminal states
// back into the parent, preserving generation order regardless of
// completion order.
package skein
