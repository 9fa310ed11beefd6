// ABOUTME: Matrix store telemetry metrics interface and implementation for lookups, block loads and views
// ABOUTME: Records cache hit/miss counts, load latency, payload bytes and load failures through the telemetry interface

package matrix

import (
	"context"
	"time"

	"github.com/KevoDB/blockmatrix/pkg/blockfile"
	"github.com/KevoDB/blockmatrix/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// StoreMetrics defines the interface for matrix store telemetry operations.
// All metrics are optional - implementations can safely be no-op.
type StoreMetrics interface {
	telemetry.ComponentMetrics

	// RecordLookup records whether a block lookup was served from the cache.
	RecordLookup(ctx context.Context, hit bool)

	// RecordBlockLoad records a physical block read and its outcome.
	RecordBlockLoad(ctx context.Context, c blockfile.Coord, duration time.Duration, bytes int, err error)

	// RecordView records a region view and how many of its cells were missing.
	RecordView(ctx context.Context, cells int, missing int, duration time.Duration)
}

// storeMetrics implements StoreMetrics using the telemetry interface.
type storeMetrics struct {
	tel    telemetry.Telemetry
	source string
	policy string
}

// NewStoreMetrics creates a new store metrics implementation.
// If tel is nil, returns a no-op implementation.
func NewStoreMetrics(tel telemetry.Telemetry, sourceKind, policy string) StoreMetrics {
	if tel == nil {
		return &noopStoreMetrics{}
	}
	return &storeMetrics{tel: tel, source: sourceKind, policy: policy}
}

// NewNoopStoreMetrics creates a no-op store metrics implementation for testing.
func NewNoopStoreMetrics() StoreMetrics {
	return &noopStoreMetrics{}
}

// RecordLookup records cache hit or miss for a block lookup.
func (m *storeMetrics) RecordLookup(ctx context.Context, hit bool) {
	status := telemetry.StatusMiss
	if hit {
		status = telemetry.StatusHit
	}

	m.tel.RecordCounter(ctx, "blockmatrix.store.lookups.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentStore),
		attribute.String(telemetry.AttrPolicy, m.policy),
		attribute.String(telemetry.AttrStatus, status),
	)
}

// RecordBlockLoad records block load metrics.
func (m *storeMetrics) RecordBlockLoad(ctx context.Context, c blockfile.Coord, duration time.Duration, bytes int, err error) {
	status := telemetry.StatusSuccess
	if err != nil {
		status = telemetry.StatusError
	}

	m.tel.RecordHistogram(ctx, "blockmatrix.store.load.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentStore),
		attribute.String(telemetry.AttrSource, m.source),
		attribute.String(telemetry.AttrStatus, status),
	)

	m.tel.RecordCounter(ctx, "blockmatrix.store.loads.total", 1,
		attribute.String(telemetry.AttrComponent, telemetry.ComponentStore),
		attribute.String(telemetry.AttrSource, m.source),
		attribute.String(telemetry.AttrStatus, status),
	)

	if err != nil {
		// Block coordinates only on failures to keep cardinality low
		m.tel.RecordCounter(ctx, "blockmatrix.store.load.errors.total", 1,
			attribute.String(telemetry.AttrComponent, telemetry.ComponentStore),
			attribute.String(telemetry.AttrSource, m.source),
			attribute.Int(telemetry.AttrBlockRow, c.Row),
			attribute.Int(telemetry.AttrBlockCol, c.Col),
		)
		return
	}

	m.tel.RecordCounter(ctx, "blockmatrix.store.bytes.read", int64(bytes),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentStore),
		attribute.String(telemetry.AttrSource, m.source),
	)
}

// RecordView records region view metrics.
func (m *storeMetrics) RecordView(ctx context.Context, cells int, missing int, duration time.Duration) {
	m.tel.RecordHistogram(ctx, "blockmatrix.store.view.cells", float64(cells),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentStore),
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeView),
	)

	m.tel.RecordHistogram(ctx, "blockmatrix.store.view.duration", duration.Seconds(),
		attribute.String(telemetry.AttrComponent, telemetry.ComponentStore),
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeView),
	)

	if missing > 0 {
		m.tel.RecordCounter(ctx, "blockmatrix.store.view.missing", int64(missing),
			attribute.String(telemetry.AttrComponent, telemetry.ComponentStore),
		)
	}
}

// Close releases any resources held by the metrics implementation.
func (m *storeMetrics) Close() error {
	return nil
}

// noopStoreMetrics provides a no-operation implementation for testing or disabled telemetry.
type noopStoreMetrics struct{}

// RecordLookup is a no-op.
func (n *noopStoreMetrics) RecordLookup(ctx context.Context, hit bool) {}

// RecordBlockLoad is a no-op.
func (n *noopStoreMetrics) RecordBlockLoad(ctx context.Context, c blockfile.Coord, duration time.Duration, bytes int, err error) {
}

// RecordView is a no-op.
func (n *noopStoreMetrics) RecordView(ctx context.Context, cells int, missing int, duration time.Duration) {
}

// Close is a no-op.
func (n *noopStoreMetrics) Close() error {
	return nil
}
