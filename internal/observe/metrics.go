// Package observe provides application-wide observability primitives for
// droidvox: OpenTelemetry metrics, tracing helpers, a trace-aware logger and
// HTTP middleware for the metrics/health listener.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so they can be scraped on
// /metrics. A package-level default [Metrics] instance ([DefaultMetrics]) is
// provided for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all droidvox metrics.
const meterName = "github.com/MrWong99/droidvox"

// Stage names a timed step of a turn.
type Stage string

const (
	StageSTT  Stage = "stt"
	StageLLM  Stage = "llm"
	StageTTS  Stage = "tts"
	StageClip Stage = "clip"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// StageDuration tracks per-stage latency. Attribute: stage.
	StageDuration metric.Float64Histogram

	// UtteranceDuration tracks the length of captured utterances.
	UtteranceDuration metric.Float64Histogram

	// Turns counts completed turns. Attribute: outcome
	// (answered, noise, echo, confused, failed).
	Turns metric.Int64Counter

	// IdleActivities counts idle scheduler decisions. Attribute: outcome.
	IdleActivities metric.Int64Counter

	// ProviderErrors counts backend failures. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes.
	// Attributes: provider, state.
	BreakerTransitions metric.Int64Counter

	// ActuatorCommands counts body commands. Attributes: action, status.
	ActuatorCommands metric.Int64Counter

	// FlushedFrames counts frames discarded after the droid spoke.
	FlushedFrames metric.Int64Counter

	// HTTPRequestDuration tracks metrics/health listener requests.
	HTTPRequestDuration metric.Float64Histogram

	threshold metric.Float64Gauge
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// collaborator calls, from fast local models to slow hosted ones.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 15,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.StageDuration, err = m.Float64Histogram("droidvox.stage.duration",
		metric.WithDescription("Latency of a turn stage (stt, llm, tts, clip)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.UtteranceDuration, err = m.Float64Histogram("droidvox.utterance.duration",
		metric.WithDescription("Length of captured utterances."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 3, 5, 8, 13, 20),
	); err != nil {
		return nil, err
	}

	if met.Turns, err = m.Int64Counter("droidvox.turns",
		metric.WithDescription("Completed turns by outcome."),
	); err != nil {
		return nil, err
	}
	if met.IdleActivities, err = m.Int64Counter("droidvox.idle.activities",
		metric.WithDescription("Idle scheduler decisions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("droidvox.provider.errors",
		metric.WithDescription("Backend failures by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("droidvox.breaker.transitions",
		metric.WithDescription("Circuit breaker state changes by provider and new state."),
	); err != nil {
		return nil, err
	}
	if met.ActuatorCommands, err = m.Int64Counter("droidvox.actuator.commands",
		metric.WithDescription("Body commands by action and status."),
	); err != nil {
		return nil, err
	}
	if met.FlushedFrames, err = m.Int64Counter("droidvox.queue.flushed_frames",
		metric.WithDescription("Captured frames discarded after speech output."),
	); err != nil {
		return nil, err
	}

	if met.threshold, err = m.Float64Gauge("droidvox.vad.threshold",
		metric.WithDescription("Energy threshold derived at calibration."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("droidvox.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordStage records how long stage took.
func (m *Metrics) RecordStage(ctx context.Context, stage Stage, d time.Duration) {
	m.StageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(Attr("stage", string(stage))))
}

// RecordUtterance records the length of a captured utterance.
func (m *Metrics) RecordUtterance(ctx context.Context, d time.Duration) {
	m.UtteranceDuration.Record(ctx, d.Seconds())
}

// RecordTurn counts one completed turn.
func (m *Metrics) RecordTurn(ctx context.Context, outcome string) {
	m.Turns.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
}

// RecordIdle counts one idle scheduler decision other than "not due".
func (m *Metrics) RecordIdle(ctx context.Context, outcome string) {
	m.IdleActivities.Add(ctx, 1, metric.WithAttributes(Attr("outcome", outcome)))
}

// RecordProviderError counts one backend failure.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("kind", kind),
	))
}

// RecordBreakerTransition counts a circuit breaker moving to state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(
		Attr("provider", provider),
		Attr("state", state),
	))
}

// RecordActuator counts one body command.
func (m *Metrics) RecordActuator(ctx context.Context, action, status string) {
	m.ActuatorCommands.Add(ctx, 1, metric.WithAttributes(
		Attr("action", action),
		Attr("status", status),
	))
}

// RecordFlush counts frames discarded by a post-output flush.
func (m *Metrics) RecordFlush(ctx context.Context, frames int) {
	if frames > 0 {
		m.FlushedFrames.Add(ctx, int64(frames))
	}
}

// SetThreshold publishes the calibrated energy threshold.
func (m *Metrics) SetThreshold(ctx context.Context, threshold float64) {
	m.threshold.Record(ctx, threshold)
}
