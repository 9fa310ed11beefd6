// ABOUTME: OpenTelemetry SDK provider implementing Telemetry with meter and tracer providers
// ABOUTME: Handles provider lifecycle, resource attributes, sampling, and per-name instrument caching

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/KevoDB/blockmatrix"

// Option configures a TelemetryProvider.
type Option func(*providerOptions)

type providerOptions struct {
	stdout io.Writer
}

// WithStdoutWriter redirects the stdout exporters to w.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *providerOptions) {
		o.stdout = w
	}
}

// TelemetryProvider implements the Telemetry interface using OpenTelemetry SDK.
type TelemetryProvider struct {
	config         Config
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	meter          metric.Meter
	tracer         oteltrace.Tracer
	resource       *sdkresource.Resource
	registry       *prometheus.Registry

	mu         sync.RWMutex
	histograms map[string]metric.Float64Histogram
	counters   map[string]metric.Int64Counter

	shutdownOnce sync.Once
	shutdownErr  error
}

// New creates a new TelemetryProvider with the given configuration.
// A disabled configuration yields a no-op implementation.
func New(cfg Config, opts ...Option) (Telemetry, error) {
	if !cfg.Enabled {
		return NewNoop(), nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	options := providerOptions{stdout: os.Stdout}
	for _, opt := range opts {
		opt(&options)
	}

	res := sdkresource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	p := &TelemetryProvider{
		config:     cfg,
		resource:   res,
		histograms: make(map[string]metric.Float64Histogram),
		counters:   make(map[string]metric.Int64Counter),
	}

	if cfg.HasExporter(ExporterPrometheus) {
		p.registry = prometheus.NewRegistry()
	}

	readers, err := createMetricReaders(cfg, options.stdout, p.registry)
	if err != nil {
		return nil, err
	}
	metricOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		metricOpts = append(metricOpts, sdkmetric.WithReader(reader))
	}
	p.meterProvider = sdkmetric.NewMeterProvider(metricOpts...)

	spanExporters, err := createTraceExporters(cfg, options.stdout)
	if err != nil {
		_ = p.meterProvider.Shutdown(context.Background())
		return nil, err
	}
	traceOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}
	for _, exporter := range spanExporters {
		traceOpts = append(traceOpts, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(cfg.BatchTimeout),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
			sdktrace.WithMaxQueueSize(cfg.MaxQueueSize),
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
		))
	}
	p.tracerProvider = sdktrace.NewTracerProvider(traceOpts...)

	p.meter = p.meterProvider.Meter(instrumentationName)
	p.tracer = p.tracerProvider.Tracer(instrumentationName)

	return p, nil
}

// RecordHistogram records value on the histogram called name, creating it on
// first use. Instruments the SDK rejects are dropped silently.
func (p *TelemetryProvider) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	h, ok := p.histogram(name)
	if !ok {
		return
	}
	h.Record(contextOrBackground(ctx), value, metric.WithAttributes(attrs...))
}

// RecordCounter adds value to the counter called name, creating it on first use.
func (p *TelemetryProvider) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	c, ok := p.counter(name)
	if !ok {
		return
	}
	c.Add(contextOrBackground(ctx), value, metric.WithAttributes(attrs...))
}

// StartSpan starts a span on the provider's tracer.
func (p *TelemetryProvider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return p.tracer.Start(contextOrBackground(ctx), name, oteltrace.WithAttributes(attrs...))
}

// Shutdown flushes and stops both providers. Calls after the first return
// the first result.
func (p *TelemetryProvider) Shutdown(ctx context.Context) error {
	p.shutdownOnce.Do(func() {
		ctx = contextOrBackground(ctx)
		p.shutdownErr = errors.Join(
			p.tracerProvider.Shutdown(ctx),
			p.meterProvider.Shutdown(ctx),
		)
	})
	return p.shutdownErr
}

// MetricsHandler serves the Prometheus registry, or returns nil when the
// prometheus exporter is not configured.
func (p *TelemetryProvider) MetricsHandler() http.Handler {
	if p.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *TelemetryProvider) histogram(name string) (metric.Float64Histogram, bool) {
	p.mu.RLock()
	h, ok := p.histograms[name]
	p.mu.RUnlock()
	if ok {
		return h, true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if h, ok := p.histograms[name]; ok {
		return h, true
	}
	h, err := p.meter.Float64Histogram(name)
	if err != nil {
		return nil, false
	}
	p.histograms[name] = h
	return h, true
}

func (p *TelemetryProvider) counter(name string) (metric.Int64Counter, bool) {
	p.mu.RLock()
	c, ok := p.counters[name]
	p.mu.RUnlock()
	if ok {
		return c, true
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[name]; ok {
		return c, true
	}
	c, err := p.meter.Int64Counter(name)
	if err != nil {
		return nil, false
	}
	p.counters[name] = c
	return c, true
}

// MetricsHandler returns the Prometheus handler of tel if it has one.
func MetricsHandler(tel Telemetry) http.Handler {
	if p, ok := tel.(*TelemetryProvider); ok {
		return p.MetricsHandler()
	}
	return nil
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
