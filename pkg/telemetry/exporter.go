// ABOUTME: OpenTelemetry exporter factory for metric readers and span exporters (Prometheus, OTLP, stdout)
// ABOUTME: Translates the telemetry Config into SDK readers and batch span processors

package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// createMetricReaders creates one metric reader per configured metric
// exporter. The otlp exporter only carries traces here.
func createMetricReaders(cfg Config, out io.Writer, registry *prometheus.Registry) ([]metric.Reader, error) {
	var readers []metric.Reader

	for _, exporterName := range cfg.Exporters {
		switch exporterName {
		case ExporterPrometheus:
			reader, err := createPrometheusReader(registry)
			if err != nil {
				return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
			}
			readers = append(readers, reader)

		case ExporterStdout:
			exporter, err := createStdoutMetricExporter(out)
			if err != nil {
				return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
			}
			readers = append(readers, metric.NewPeriodicReader(exporter,
				metric.WithInterval(cfg.BatchTimeout),
				metric.WithTimeout(cfg.ExportTimeout),
			))
		}
	}

	return readers, nil
}

// createTraceExporters creates trace exporters based on configuration.
func createTraceExporters(cfg Config, out io.Writer) ([]trace.SpanExporter, error) {
	var exporters []trace.SpanExporter

	for _, exporterName := range cfg.Exporters {
		switch exporterName {
		case ExporterOTLP:
			exporter, err := createOTLPTraceExporter(cfg)
			if err != nil {
				return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
			}
			exporters = append(exporters, exporter)

		case ExporterStdout:
			exporter, err := createStdoutTraceExporter(out)
			if err != nil {
				return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
			}
			exporters = append(exporters, exporter)
		}
	}

	return exporters, nil
}

// createPrometheusReader creates a pull-based reader registered with registry.
func createPrometheusReader(registry *prometheus.Registry) (metric.Reader, error) {
	return otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithoutScopeInfo(),
	)
}

// createStdoutMetricExporter creates a stdout metrics exporter.
func createStdoutMetricExporter(out io.Writer) (metric.Exporter, error) {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "\t")
	return stdoutmetric.New(stdoutmetric.WithEncoder(enc))
}

// createOTLPTraceExporter creates an OTLP trace exporter. The gRPC
// connection is established lazily.
func createOTLPTraceExporter(cfg Config) (trace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithTimeout(cfg.ExportTimeout),
	}
	if cfg.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	} else {
		// System roots
		opts = append(opts, otlptracegrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}

	return otlptracegrpc.New(context.Background(), opts...)
}

// createStdoutTraceExporter creates a stdout trace exporter.
func createStdoutTraceExporter(out io.Writer) (trace.SpanExporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(out),
		stdouttrace.WithPrettyPrint(),
	)
}
