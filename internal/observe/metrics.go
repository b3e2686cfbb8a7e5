// Package observe holds the server's telemetry: OpenTelemetry instruments,
// spans tied to the slog output through trace ids, and the HTTP middleware
// that records both per request.
//
// Instruments are created from a [metric.MeterProvider]. The process-wide
// set ([DefaultMetrics]) uses the global provider, which [InitProvider]
// bridges to Prometheus; tests build their own with [NewMetrics] and a
// manual reader.
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName scopes every Chronicles instrument.
const meterName = "github.com/MrWong99/chronicles"

// latencyBuckets (seconds) span a fast cache hit to a slow model answer.
var latencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30, 60}

// Metrics is the instrument set. Safe for concurrent use.
type Metrics struct {
	// LLMDuration is the latency of one vendor call, by provider and kind
	// (turn, recap or text).
	LLMDuration metric.Float64Histogram
	// TurnDuration spans a turn stream from request to its end, by outcome.
	TurnDuration metric.Float64Histogram
	// HTTPRequestDuration is per request, by method, route and status.
	HTTPRequestDuration metric.Float64Histogram

	ProviderRequests metric.Int64Counter
	ProviderErrors   metric.Int64Counter
	// Fallbacks counts turns answered with the canned fallback response.
	Fallbacks metric.Int64Counter
	// StreamEvents counts SSE frames by event type.
	StreamEvents metric.Int64Counter

	ActiveStreams metric.Int64UpDownCounter
}

// NewMetrics creates every instrument on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	var errs []error
	seconds := func(name, desc string, opts ...metric.Float64HistogramOption) metric.Float64Histogram {
		opts = append(opts, metric.WithDescription(desc), metric.WithUnit("s"))
		h, err := meter.Float64Histogram(name, opts...)
		errs = append(errs, err)
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	buckets := metric.WithExplicitBucketBoundaries(latencyBuckets...)

	m := &Metrics{
		LLMDuration:         seconds("chronicles.llm.duration", "Latency of narrator vendor calls.", buckets),
		TurnDuration:        seconds("chronicles.turn.duration", "Turn stream duration from request to end.", buckets),
		HTTPRequestDuration: seconds("chronicles.http.request.duration", "HTTP request latency."),
		ProviderRequests:    counter("chronicles.provider.requests", "Vendor calls by provider, kind and status."),
		ProviderErrors:      counter("chronicles.provider.errors", "Failed vendor calls by provider and kind."),
		Fallbacks:           counter("chronicles.turn.fallbacks", "Turns answered with the fallback response."),
		StreamEvents:        counter("chronicles.stream.events", "SSE frames written by event type."),
	}
	active, err := meter.Int64UpDownCounter("chronicles.active_streams", metric.WithDescription("Open turn streams."))
	errs = append(errs, err)
	m.ActiveStreams = active

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("observe: create instruments: %w", err)
	}
	return m, nil
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// DefaultMetrics returns the process-wide set, created on first use from the
// global meter provider. Call it after [InitProvider].
func DefaultMetrics() *Metrics {
	defaultOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic(err)
		}
		defaultMetrics = m
	})
	return defaultMetrics
}

// Attr is shorthand for [attribute.String].
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind), Attr("status", status)))
}

func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)))
}

func (m *Metrics) RecordLLMDuration(ctx context.Context, provider, kind string, seconds float64) {
	m.LLMDuration.Record(ctx, seconds, metric.WithAttributes(Attr("provider", provider), Attr("kind", kind)))
}

func (m *Metrics) RecordFallback(ctx context.Context, provider string) {
	m.Fallbacks.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider)))
}

func (m *Metrics) RecordStreamEvent(ctx context.Context, eventType string) {
	m.StreamEvents.Add(ctx, 1, metric.WithAttributes(Attr("type", eventType)))
}

// RecordTurn records a finished turn stream. outcome is complete, aborted or
// disconnected.
func (m *Metrics) RecordTurn(ctx context.Context, outcome string, seconds float64) {
	m.TurnDuration.Record(ctx, seconds, metric.WithAttributes(Attr("outcome", outcome)))
}
