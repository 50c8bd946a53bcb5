package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// AppInfo identifies an application to trackers.
type AppInfo struct {
	AppID        string
	PartitionKey string
	// ParentID is set for child applications spawned by a parallel
	// fan-out, so trackers can render the full recursive execution tree.
	ParentID   string
	Entrypoint string
}

// StepStartEvent is reported before an action executes.
type StepStartEvent struct {
	App      AppInfo
	Action   string
	Sequence int64
	Inputs   Inputs
	State    State
}

// StepEndEvent is reported after an action executed, for both successes and
// failures (Err != nil).
type StepEndEvent struct {
	App      AppInfo
	Action   string
	Sequence int64
	Result   Result
	State    State
	Err      error
	Duration time.Duration
}

// StreamEvent reports streaming lifecycle transitions for one action
// execution: initialization, the first yielded item, and stream end (with
// the terminal error, if any).
type StreamEvent struct {
	App    AppInfo
	Action string
	Err    error
}

// Tracker receives structured execution events for observability. The
// engine calls trackers best-effort and never lets them influence run
// correctness; implementations should be fast and non-blocking, pushing
// heavy work elsewhere.
type Tracker interface {
	OnAppCreated(ctx context.Context, info AppInfo)
	OnStepStart(ctx context.Context, ev StepStartEvent)
	OnStepEnd(ctx context.Context, ev StepEndEvent)
	// OnSpanStart / OnSpanEnd bracket nested units of work (a whole Run
	// call, a parallel fan-out) for coarse instrumentation.
	OnSpanStart(ctx context.Context, info AppInfo, span string)
	OnSpanEnd(ctx context.Context, info AppInfo, span string)
	OnStreamInit(ctx context.Context, ev StreamEvent)
	OnStreamFirstItem(ctx context.Context, ev StreamEvent)
	OnStreamEnd(ctx context.Context, ev StreamEvent)
}

// NoopTracker is a Tracker that does nothing. It is the default when no
// tracker is configured.
type NoopTracker struct{}

func (NoopTracker) OnAppCreated(ctx context.Context, info AppInfo)              {}
func (NoopTracker) OnStepStart(ctx context.Context, ev StepStartEvent)          {}
func (NoopTracker) OnStepEnd(ctx context.Context, ev StepEndEvent)              {}
func (NoopTracker) OnSpanStart(ctx context.Context, info AppInfo, span string)  {}
func (NoopTracker) OnSpanEnd(ctx context.Context, info AppInfo, span string)    {}
func (NoopTracker) OnStreamInit(ctx context.Context, ev StreamEvent)            {}
func (NoopTracker) OnStreamFirstItem(ctx context.Context, ev StreamEvent)       {}
func (NoopTracker) OnStreamEnd(ctx context.Context, ev StreamEvent)             {}

// CompositeTracker fans events out to multiple trackers.
type CompositeTracker struct {
	trackers []Tracker
}

// NewCompositeTracker creates a Tracker forwarding every event to each
// non-nil tracker. With zero or one tracker it avoids the indirection.
func NewCompositeTracker(trackers ...Tracker) Tracker {
	filtered := make([]Tracker, 0, len(trackers))
	for _, t := range trackers {
		if t != nil {
			filtered = append(filtered, t)
		}
	}
	if len(filtered) == 0 {
		return NoopTracker{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeTracker{trackers: filtered}
}

func (c *CompositeTracker) OnAppCreated(ctx context.Context, info AppInfo) {
	for _, t := range c.trackers {
		t.OnAppCreated(ctx, info)
	}
}

func (c *CompositeTracker) OnStepStart(ctx context.Context, ev StepStartEvent) {
	for _, t := range c.trackers {
		t.OnStepStart(ctx, ev)
	}
}

func (c *CompositeTracker) OnStepEnd(ctx context.Context, ev StepEndEvent) {
	for _, t := range c.trackers {
		t.OnStepEnd(ctx, ev)
	}
}

func (c *CompositeTracker) OnSpanStart(ctx context.Context, info AppInfo, span string) {
	for _, t := range c.trackers {
		t.OnSpanStart(ctx, info, span)
	}
}

func (c *CompositeTracker) OnSpanEnd(ctx context.Context, info AppInfo, span string) {
	for _, t := range c.trackers {
		t.OnSpanEnd(ctx, info, span)
	}
}

func (c *CompositeTracker) OnStreamInit(ctx context.Context, ev StreamEvent) {
	for _, t := range c.trackers {
		t.OnStreamInit(ctx, ev)
	}
}

func (c *CompositeTracker) OnStreamFirstItem(ctx context.Context, ev StreamEvent) {
	for _, t := range c.trackers {
		t.OnStreamFirstItem(ctx, ev)
	}
}

func (c *CompositeTracker) OnStreamEnd(ctx context.Context, ev StreamEvent) {
	for _, t := range c.trackers {
		t.OnStreamEnd(ctx, ev)
	}
}

// LoggingTracker writes structured logs using log/slog.
type LoggingTracker struct {
	Logger *slog.Logger
}

// NewLoggingTracker creates a Tracker that logs lifecycle events with the
// provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingTracker(logger *slog.Logger) Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingTracker{Logger: logger}
}

func (o *LoggingTracker) appAttrs(info AppInfo) []any {
	attrs := []any{
		slog.String("app_id", info.AppID),
	}
	if info.PartitionKey != "" {
		attrs = append(attrs, slog.String("partition_key", info.PartitionKey))
	}
	if info.ParentID != "" {
		attrs = append(attrs, slog.String("parent_id", info.ParentID))
	}
	return attrs
}

func (o *LoggingTracker) OnAppCreated(ctx context.Context, info AppInfo) {
	o.Logger.InfoContext(ctx, "app_created", o.appAttrs(info)...)
}

func (o *LoggingTracker) OnStepStart(ctx context.Context, ev StepStartEvent) {
	attrs := append(o.appAttrs(ev.App),
		slog.String("action", ev.Action),
		slog.Int64("sequence", ev.Sequence),
	)
	o.Logger.DebugContext(ctx, "step_start", attrs...)
}

func (o *LoggingTracker) OnStepEnd(ctx context.Context, ev StepEndEvent) {
	level := slog.LevelDebug
	if ev.Err != nil {
		level = slog.LevelError
	}
	attrs := append(o.appAttrs(ev.App),
		slog.String("action", ev.Action),
		slog.Int64("sequence", ev.Sequence),
		slog.Duration("duration", ev.Duration),
		slog.Any("error", ev.Err),
	)
	o.Logger.Log(ctx, level, "step_end", attrs...)
}

func (o *LoggingTracker) OnSpanStart(ctx context.Context, info AppInfo, span string) {
	o.Logger.DebugContext(ctx, "span_start", append(o.appAttrs(info), slog.String("span", span))...)
}

func (o *LoggingTracker) OnSpanEnd(ctx context.Context, info AppInfo, span string) {
	o.Logger.DebugContext(ctx, "span_end", append(o.appAttrs(info), slog.String("span", span))...)
}

func (o *LoggingTracker) OnStreamInit(ctx context.Context, ev StreamEvent) {
	o.Logger.DebugContext(ctx, "stream_init", append(o.appAttrs(ev.App), slog.String("action", ev.Action))...)
}

func (o *LoggingTracker) OnStreamFirstItem(ctx context.Context, ev StreamEvent) {
	o.Logger.DebugContext(ctx, "stream_first_item", append(o.appAttrs(ev.App), slog.String("action", ev.Action))...)
}

func (o *LoggingTracker) OnStreamEnd(ctx context.Context, ev StreamEvent) {
	attrs := append(o.appAttrs(ev.App), slog.String("action", ev.Action), slog.Any("error", ev.Err))
	o.Logger.DebugContext(ctx, "stream_end", attrs...)
}

// Metrics collects simple counters and aggregate step durations. It
// implements Tracker and can be combined with a LoggingTracker via
// NewCompositeTracker.
type Metrics struct {
	NoopTracker

	appsCreated       atomic.Int64
	stepsExecuted     atomic.Int64
	stepsFailed       atomic.Int64
	streamsOpened     atomic.Int64
	totalStepDuration atomic.Int64 // nanoseconds
}

// MetricsSnapshot is an immutable snapshot of Metrics.
type MetricsSnapshot struct {
	AppsCreated     int64
	StepsExecuted   int64
	StepsFailed     int64
	StreamsOpened   int64
	AvgStepDuration time.Duration
}

func (m *Metrics) OnAppCreated(ctx context.Context, info AppInfo) {
	m.appsCreated.Add(1)
}

func (m *Metrics) OnStepEnd(ctx context.Context, ev StepEndEvent) {
	if ev.Err != nil {
		m.stepsFailed.Add(1)
		return
	}
	m.stepsExecuted.Add(1)
	m.totalStepDuration.Add(ev.Duration.Nanoseconds())
}

func (m *Metrics) OnStreamInit(ctx context.Context, ev StreamEvent) {
	m.streamsOpened.Add(1)
}

// Snapshot returns a snapshot of the current metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	steps := m.stepsExecuted.Load()
	totalNs := m.totalStepDuration.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(totalNs / steps)
	}

	return MetricsSnapshot{
		AppsCreated:     m.appsCreated.Load(),
		StepsExecuted:   steps,
		StepsFailed:     m.stepsFailed.Load(),
		StreamsOpened:   m.streamsOpened.Load(),
		AvgStepDuration: avg,
	}
}
