// Package metrics exposes the scheduler's instruments (active sessions,
// engine-busy occupancy, a histogram of request-queue depth at enqueue, and
// a count of completed utterances) over OpenTelemetry's
// metric API, backed by the Prometheus exporter bridge — the same
// MeterProvider-over-promexporter wiring used elsewhere in the example
// corpus (observe.InitProvider), trimmed here to metrics only since this
// daemon has no tracing surface to export.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/metric"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Scheduler holds the instruments the scheduler updates as clients and
// utterances move through their lifecycle.
type Scheduler struct {
	provider *sdkmetric.MeterProvider

	activeSessions metric.Int64UpDownCounter
	engineBusy     metric.Int64UpDownCounter
	queueDepth     metric.Int64Histogram
	utterances     metric.Int64Counter
}

// NewScheduler builds the scheduler's instruments against a fresh
// MeterProvider backed by the Prometheus exporter. Call Handler to obtain
// the HTTP handler that serves them, and Shutdown to flush on exit.
func NewScheduler() (*Scheduler, error) {
	exp, err := promexporter.New()
	if err != nil {
		return nil, fmt.Errorf("metrics: new prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	meter := provider.Meter("ttsd/scheduler")

	activeSessions, err := meter.Int64UpDownCounter("ttsd_active_sessions",
		metric.WithDescription("Number of live client sessions"))
	if err != nil {
		return nil, err
	}
	engineBusy, err := meter.Int64UpDownCounter("ttsd_engine_busy",
		metric.WithDescription("1 while the synthesis slot is occupied, 0 otherwise"))
	if err != nil {
		return nil, err
	}
	queueDepth, err := meter.Int64Histogram("ttsd_request_queue_depth",
		metric.WithDescription("Pending add_text requests observed at enqueue time"))
	if err != nil {
		return nil, err
	}
	utterances, err := meter.Int64Counter("ttsd_utterances_completed_total",
		metric.WithDescription("Utterances that reached Completed"))
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		provider:       provider,
		activeSessions: activeSessions,
		engineBusy:     engineBusy,
		queueDepth:     queueDepth,
		utterances:     utterances,
	}, nil
}

// Handler returns the HTTP handler to mount at /metrics.
func (s *Scheduler) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and closes the underlying MeterProvider.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	return s.provider.Shutdown(ctx)
}

// SessionCreated records a new client session.
func (s *Scheduler) SessionCreated(ctx context.Context) {
	s.activeSessions.Add(ctx, 1)
}

// SessionFinalized records a client session leaving the registry.
func (s *Scheduler) SessionFinalized(ctx context.Context) {
	s.activeSessions.Add(ctx, -1)
}

// EngineSlotOccupied records the synthesis slot becoming busy.
func (s *Scheduler) EngineSlotOccupied(ctx context.Context) {
	s.engineBusy.Add(ctx, 1)
}

// EngineSlotReleased records the synthesis slot returning to idle.
func (s *Scheduler) EngineSlotReleased(ctx context.Context) {
	s.engineBusy.Add(ctx, -1)
}

// RequestEnqueued records the queue depth observed right after an add_text
// call pushed onto a client's request queue.
func (s *Scheduler) RequestEnqueued(ctx context.Context, depth int) {
	s.queueDepth.Record(ctx, int64(depth))
}

// UtteranceCompleted records an utterance reaching the Completed state.
func (s *Scheduler) UtteranceCompleted(ctx context.Context) {
	s.utterances.Add(ctx, 1)
}
