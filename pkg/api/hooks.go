package api

import "context"

// Hooks are caller extension points invoked around execution. All fields are
// optional; nil funcs are skipped. PreStep and PostStep bracket each action
// execution, and PostStep always fires, even when the action failed, so
// telemetry layered on hooks is never lost. PreRun and PostRun bracket an
// entire Step/Run/Stream invocation rather than each action.
//
// Hooks observe; they cannot veto a step or rewrite state. Policy such as
// retries belongs in the caller, layered on top of these callbacks.
type Hooks struct {
	PreStep  func(ctx context.Context, ev StepStartEvent)
	PostStep func(ctx context.Context, ev StepEndEvent)
	PreRun   func(ctx context.Context, info AppInfo)
	PostRun  func(ctx context.Context, info AppInfo, err error)
}
