// Package api contains the core building blocks of the skein orchestration
// engine. It provides the low-level primitives for defining actions, wiring
// them into graphs, and observing application behavior.
//
// Most users interact with the higher-level skein package, which re-exports
// selected types and helpers from this package. The api package is intended
// for advanced use cases, custom integrations, or contributors extending the
// engine itself.
//
// # Concepts
//
// The api package centers around a small set of concepts:
//
//   - State: an immutable, versioned key-value snapshot
//   - Actions and streaming actions
//   - Conditions and transitions
//   - Graphs
//   - Collaborator interfaces (Persister, Tracker, SerdeRegistry)
//
// These primitives are assembled by the builder in the skein package, but can
// also be used directly where fine-grained control is needed.
//
// # State
//
// State is a value type. Every mutating operation (Set, Update, Append,
// Delete, Merge) returns a new State carrying an incremented version; the
// receiver is never modified. Actions receive a projection of the state
// limited to their declared read set and must confine their writes to their
// declared write set.
//
// # Actions
//
// An Action is a named unit of work with declared reads, writes, and
// optional required runtime inputs. FromFunc adapts a plain function;
// StreamingFromFunc adapts a producer that emits intermediate results before
// returning its final result. Bind pre-fills a runtime input, producing a
// derived action.
//
// # Conditions and Transitions
//
// A Transition names a source action, a target action, and a Condition
// evaluated against the committed state. Conditions declare the fields they
// read; evaluating one against a state missing a declared field is an error,
// not a non-match. The zero Condition and Default() always match, and a
// default transition must be ordered last among its source's transitions.
//
// # Graphs
//
// NewGraph validates a set of actions and transitions: every transition
// endpoint must name a known action, the entrypoint must be set and known,
// and every action must be reachable from the entrypoint. Actions with no
// outgoing transitions are terminal.
//
// # Collaborators
//
// Persister stores and loads checkpoints keyed by application identifier and
// partition key. Tracker receives lifecycle events (application creation,
// step start and end, span enter and exit, stream lifecycle). SerdeRegistry
// customizes per-field state serialization. All three are optional; the
// engine runs fully in memory without them.
package api
