// Package metrics provides a Prometheus tracker. Expose the collectors
// through promhttp in the host process; this package only records.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skeinflow/skein/pkg/api"
)

// PrometheusTracker records step and stream activity as Prometheus
// metrics. Step metrics are labelled by action name; per-application
// labels are deliberately avoided to keep cardinality bounded.
type PrometheusTracker struct {
	api.NoopTracker

	appsCreated   prometheus.Counter
	stepsTotal    *prometheus.CounterVec
	stepDuration  *prometheus.HistogramVec
	streamsOpened *prometheus.CounterVec
}

var _ api.Tracker = (*PrometheusTracker)(nil)

// NewPrometheusTracker creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to use the default registry.
func NewPrometheusTracker(reg prometheus.Registerer) (*PrometheusTracker, error) {
	t := &PrometheusTracker{
		appsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "skein_apps_created_total",
			Help: "Total number of applications created.",
		}),
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skein_steps_total",
			Help: "Total number of executed steps.",
		}, []string{"action", "outcome"}),
		stepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "skein_step_duration_seconds",
			Help: "Duration of action executions.",
		}, []string{"action"}),
		streamsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "skein_streams_opened_total",
			Help: "Total number of streaming executions started.",
		}, []string{"action"}),
	}

	for _, c := range []prometheus.Collector{t.appsCreated, t.stepsTotal, t.stepDuration, t.streamsOpened} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (t *PrometheusTracker) OnAppCreated(ctx context.Context, app api.AppInfo) {
	t.appsCreated.Inc()
}

func (t *PrometheusTracker) OnStepEnd(ctx context.Context, e api.StepEndEvent) {
	outcome := "ok"
	if e.Err != nil {
		outcome = "error"
	}
	t.stepsTotal.WithLabelValues(e.Action, outcome).Inc()
	t.stepDuration.WithLabelValues(e.Action).Observe(e.Duration.Seconds())
}

func (t *PrometheusTracker) OnStreamInit(ctx context.Context, e api.StreamEvent) {
	t.streamsOpened.WithLabelValues(e.Action).Inc()
}
