// ABOUTME: Unit tests for matrix store telemetry metrics with a mock telemetry server
// ABOUTME: Drives real store lookups, loads and views and checks the recorded counters and histograms

package matrix

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/KevoDB/blockmatrix/pkg/blockfile"
	"github.com/KevoDB/blockmatrix/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// mockTelemetryServer provides a telemetry server implementation that captures metrics for testing
// This mocks the telemetry destination/server, NOT the business logic
type mockTelemetryServer struct {
	mu         sync.Mutex
	histograms []histogramRecord
	counters   []counterRecord
	spans      []spanRecord
}

type histogramRecord struct {
	name  string
	value float64
	attrs []attribute.KeyValue
}

type counterRecord struct {
	name  string
	value int64
	attrs []attribute.KeyValue
}

type spanRecord struct {
	name  string
	attrs []attribute.KeyValue
}

func newMockTelemetryServer() *mockTelemetryServer {
	return &mockTelemetryServer{}
}

func (m *mockTelemetryServer) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, histogramRecord{name: name, value: value, attrs: attrs})
}

func (m *mockTelemetryServer) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, counterRecord{name: name, value: value, attrs: attrs})
}

func (m *mockTelemetryServer) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spans = append(m.spans, spanRecord{name: name, attrs: attrs})
	return ctx, trace.SpanFromContext(ctx)
}

func (m *mockTelemetryServer) Shutdown(ctx context.Context) error {
	return nil
}

// sumCounter adds up every counter called name whose attributes include all of match
func (m *mockTelemetryServer) sumCounter(name string, match ...attribute.KeyValue) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total int64
	for _, c := range m.counters {
		if c.name == name && hasAttrs(c.attrs, match) {
			total += c.value
		}
	}
	return total
}

func (m *mockTelemetryServer) findHistogram(name string) *histogramRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.histograms {
		if h.name == name {
			return &h
		}
	}
	return nil
}

func (m *mockTelemetryServer) hasSpan(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.spans {
		if s.name == name {
			return true
		}
	}
	return false
}

func hasAttrs(attrs, want []attribute.KeyValue) bool {
	for _, w := range want {
		found := false
		for _, a := range attrs {
			if a == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func TestStoreMetrics(t *testing.T) {
	path := writeMatrix(t, 10, 4, valueAt)
	mockServer := newMockTelemetryServer()
	s := openStore(t, path, nil, WithTelemetry(mockServer))

	if !mockServer.hasSpan("blockmatrix.store.open") {
		t.Error("Expected an open span")
	}

	s.Entry(0, 0)
	s.Entry(1, 1)
	s.Entry(9, 9)

	hit := attribute.String(telemetry.AttrStatus, telemetry.StatusHit)
	miss := attribute.String(telemetry.AttrStatus, telemetry.StatusMiss)
	if n := mockServer.sumCounter("blockmatrix.store.lookups.total", hit); n != 1 {
		t.Errorf("Expected 1 cache hit, got %d", n)
	}
	if n := mockServer.sumCounter("blockmatrix.store.lookups.total", miss); n != 2 {
		t.Errorf("Expected 2 cache misses, got %d", n)
	}

	success := attribute.String(telemetry.AttrStatus, telemetry.StatusSuccess)
	if n := mockServer.sumCounter("blockmatrix.store.loads.total", success); n != 2 {
		t.Errorf("Expected 2 successful loads, got %d", n)
	}
	// Block (0, 0) is 4x4 and block (2, 2) is 2x2
	if n := mockServer.sumCounter("blockmatrix.store.bytes.read"); n != 4*(16+4) {
		t.Errorf("Expected %d bytes read, got %d", 4*(16+4), n)
	}

	h := mockServer.findHistogram("blockmatrix.store.load.duration")
	if h == nil {
		t.Fatal("Expected a load duration histogram")
	}
	if !hasAttrs(h.attrs, []attribute.KeyValue{attribute.String(telemetry.AttrSource, "auto")}) {
		t.Errorf("Expected source attribute on load duration, got %v", h.attrs)
	}
}

func TestStoreMetricsOnFailure(t *testing.T) {
	path := writeMatrix(t, 10, 4, valueAt)
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Truncate(path, info.Size()-4); err != nil {
		t.Fatal(err)
	}

	mockServer := newMockTelemetryServer()
	s := openStore(t, path, nil, WithTelemetry(mockServer))

	s.Entry(9, 9)
	s.Entry(9, 8)

	failed := []attribute.KeyValue{
		attribute.Int(telemetry.AttrBlockRow, 2),
		attribute.Int(telemetry.AttrBlockCol, 2),
	}
	if n := mockServer.sumCounter("blockmatrix.store.load.errors.total", failed...); n != 2 {
		t.Errorf("Expected 2 load failures for block (2, 2), got %d", n)
	}
	if n := mockServer.sumCounter("blockmatrix.store.bytes.read"); n != 0 {
		t.Errorf("Failed loads should not count bytes, got %d", n)
	}
}

func TestViewMetrics(t *testing.T) {
	path := writeMatrix(t, 10, 4, valueAt)
	mockServer := newMockTelemetryServer()
	s := openStore(t, path, nil, WithTelemetry(mockServer))

	if _, err := s.View(context.Background(), 2, 3, 4, 5); err != nil {
		t.Fatalf("View failed: %v", err)
	}

	h := mockServer.findHistogram("blockmatrix.store.view.cells")
	if h == nil || h.value != 20 {
		t.Errorf("Expected a view cells histogram of 20, got %+v", h)
	}
	if !mockServer.hasSpan("blockmatrix.store.view") {
		t.Error("Expected a view span")
	}
}

func TestNoopStoreMetrics(t *testing.T) {
	ctx := context.Background()
	for _, m := range []StoreMetrics{NewNoopStoreMetrics(), NewStoreMetrics(nil, "file", "clock")} {
		m.RecordLookup(ctx, true)
		m.RecordBlockLoad(ctx, blockfile.Coord{}, 0, 0, nil)
		m.RecordView(ctx, 1, 0, 0)
		if err := m.Close(); err != nil {
			t.Errorf("Close returned error: %v", err)
		}
	}
}
