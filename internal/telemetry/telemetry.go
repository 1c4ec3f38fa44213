// Package telemetry holds the process-wide Prometheus collectors and the
// OpenTelemetry tracer used by the runtime.
//
// Collectors are registered on the default registry at init, so importing
// the package is enough to expose them through promhttp.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "walletcore"

var (
	// DispatchTotal counts actions applied by the store, labelled by action type.
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletcore_dispatch_total",
		Help: "Actions dispatched to the store, by type",
	}, []string{"type"})

	// PassesTotal counts update passes run by the attach root.
	PassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletcore_attach_passes_total",
		Help: "Update passes run by the attach root",
	})

	// LiveNodes tracks how many leaf nodes are mounted.
	LiveNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletcore_live_nodes",
		Help: "Leaf nodes currently running",
	})

	// FaultsTotal counts faults handed to the error sink, labelled by operation.
	FaultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletcore_faults_total",
		Help: "Faults delivered to the error sink, by operation",
	}, []string{"op"})

	// TaskRunsTotal counts scheduled task runs, labelled ok or error.
	TaskRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletcore_task_runs_total",
		Help: "Scheduled task runs, by task and result",
	}, []string{"task", "result"})

	// TaskDuration observes how long each scheduled task run took.
	TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "walletcore_task_duration_seconds",
		Help:    "Duration of scheduled task runs",
		Buckets: prometheus.DefBuckets,
	}, []string{"task"})

	// JournalDropped counts journal entries that could not be written.
	JournalDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "walletcore_journal_dropped_total",
		Help: "Journal entries that failed to persist",
	})
)

// StartSpan starts a span on the walletcore tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndSpan records err (if any) on span and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// ObserveTask records one task run.
func ObserveTask(task string, seconds float64, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	TaskRunsTotal.WithLabelValues(task, result).Inc()
	TaskDuration.WithLabelValues(task).Observe(seconds)
}
