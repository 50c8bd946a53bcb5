package api

import "context"

// AppContext exposes the running application's identity and collaborators
// to the actions it executes. The engine attaches it to the context for
// every action invocation, which is how nested executions (parallel
// fan-outs running whole child applications) inherit the parent's tracker
// and persister and derive stable child identifiers.
type AppContext struct {
	App       AppInfo
	Sequence  int64
	Tracker   Tracker
	Persister Persister
	Registry  *SerdeRegistry

	// Executor is the application's default parallel executor. It is
	// declared as any to keep the executor abstraction out of this
	// package; the parallel package asserts its own Executor type.
	Executor any
}

type appContextKey struct{}

// WithAppContext returns a context carrying the application context.
func WithAppContext(ctx context.Context, ac AppContext) context.Context {
	return context.WithValue(ctx, appContextKey{}, ac)
}

// AppContextFrom extracts the application context attached by the engine.
// ok is false when the action is invoked outside an application, for
// example directly from a test.
func AppContextFrom(ctx context.Context) (AppContext, bool) {
	ac, ok := ctx.Value(appContextKey{}).(AppContext)
	return ac, ok
}
