// Package otel provides OpenTelemetry implementations of the chatlink o11y interfaces.
package otel

import (
	"context"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mychat/chatlink/pkg/chatlink/o11y"
)

// Provider implements both MetricsProvider and TracingProvider using OpenTelemetry.
// Instruments are created once per name and reused.
type Provider struct {
	meter  metric.Meter
	tracer trace.Tracer

	mu         sync.Mutex
	counters   map[string]*otelCounter
	histograms map[string]*otelHistogram
	gauges     map[string]*otelGauge
}

// NewProvider creates a provider backed by the global OpenTelemetry meter and tracer.
func NewProvider(serviceName, serviceVersion string) *Provider {
	return NewProviderFrom(
		otel.Meter(serviceName, metric.WithInstrumentationVersion(serviceVersion)),
		otel.Tracer(serviceName, trace.WithInstrumentationVersion(serviceVersion)),
	)
}

// NewProviderFrom creates a provider from an explicit meter and tracer.
func NewProviderFrom(meter metric.Meter, tracer trace.Tracer) *Provider {
	return &Provider{
		meter:      meter,
		tracer:     tracer,
		counters:   make(map[string]*otelCounter),
		histograms: make(map[string]*otelHistogram),
		gauges:     make(map[string]*otelGauge),
	}
}

// Counter returns the Int64Counter registered under name.
func (p *Provider) Counter(name string) o11y.Counter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.counters[name]; ok {
		return c
	}
	counter, _ := p.meter.Int64Counter(name)
	c := &otelCounter{counter: counter}
	p.counters[name] = c
	return c
}

// Histogram returns the Float64Histogram registered under name.
func (p *Provider) Histogram(name string) o11y.Histogram {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h, ok := p.histograms[name]; ok {
		return h
	}
	histogram, _ := p.meter.Float64Histogram(name)
	h := &otelHistogram{histogram: histogram}
	p.histograms[name] = h
	return h
}

// Gauge returns a gauge registered under name. It is backed by an
// UpDownCounter that is moved by the difference from the last value set
// for the same label set.
func (p *Provider) Gauge(name string) o11y.Gauge {
	p.mu.Lock()
	defer p.mu.Unlock()

	if g, ok := p.gauges[name]; ok {
		return g
	}
	updown, _ := p.meter.Float64UpDownCounter(name)
	g := &otelGauge{gauge: updown, last: make(map[string]float64)}
	p.gauges[name] = g
	return g
}

// StartSpan creates an OpenTelemetry span
func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

func toAttributes(labels []o11y.Label) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(labels))
	for i, label := range labels {
		attrs[i] = attribute.String(label.Key, label.Value)
	}
	return attrs
}

func labelKey(labels []o11y.Label) string {
	var sb strings.Builder
	for _, label := range labels {
		sb.WriteString(label.Key)
		sb.WriteByte('=')
		sb.WriteString(label.Value)
		sb.WriteByte(0)
	}
	return sb.String()
}

type otelCounter struct {
	counter metric.Int64Counter
}

func (c *otelCounter) Add(ctx context.Context, value int64, labels ...o11y.Label) {
	c.counter.Add(ctx, value, metric.WithAttributes(toAttributes(labels)...))
}

type otelHistogram struct {
	histogram metric.Float64Histogram
}

func (h *otelHistogram) Record(ctx context.Context, value float64, labels ...o11y.Label) {
	h.histogram.Record(ctx, value, metric.WithAttributes(toAttributes(labels)...))
}

type otelGauge struct {
	gauge metric.Float64UpDownCounter

	mu   sync.Mutex
	last map[string]float64
}

func (g *otelGauge) Set(ctx context.Context, value float64, labels ...o11y.Label) {
	key := labelKey(labels)

	g.mu.Lock()
	delta := value - g.last[key]
	g.last[key] = value
	g.mu.Unlock()

	if delta != 0 {
		g.gauge.Add(ctx, delta, metric.WithAttributes(toAttributes(labels)...))
	}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) SetAttributes(labels ...o11y.Label) {
	s.span.SetAttributes(toAttributes(labels)...)
}

func (s *otelSpan) SetStatus(code o11y.SpanStatusCode, description string) {
	var otelCode codes.Code
	switch code {
	case o11y.SpanStatusOK:
		otelCode = codes.Ok
	case o11y.SpanStatusError:
		otelCode = codes.Error
	default:
		otelCode = codes.Unset
	}
	s.span.SetStatus(otelCode, description)
}

func (s *otelSpan) End() {
	s.span.End()
}
