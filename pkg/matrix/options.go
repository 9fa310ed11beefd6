package matrix

import (
	"github.com/KevoDB/blockmatrix/pkg/blockfile"
	"github.com/KevoDB/blockmatrix/pkg/cache"
	"github.com/KevoDB/blockmatrix/pkg/common/log"
	"github.com/KevoDB/blockmatrix/pkg/source"
	"github.com/KevoDB/blockmatrix/pkg/stats"
	"github.com/KevoDB/blockmatrix/pkg/telemetry"
)

// Option configures a Store
type Option func(*storeOptions)

type storeOptions struct {
	logger    log.Logger
	telemetry telemetry.Telemetry
	opener    source.Opener
	cache     cache.Cache[blockfile.Coord, *Block]
	collector stats.Collector
}

// WithLogger sets the logger used for load failures and lifecycle events
func WithLogger(logger log.Logger) Option {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithTelemetry records store metrics through tel
func WithTelemetry(tel telemetry.Telemetry) Option {
	return func(o *storeOptions) {
		o.telemetry = tel
	}
}

// WithOpener reads blocks through opener instead of the one derived from the
// configured location and source kind
func WithOpener(opener source.Opener) Option {
	return func(o *storeOptions) {
		o.opener = opener
	}
}

// WithCache replaces the block cache built from the configured policy and
// capacity
func WithCache(c cache.Cache[blockfile.Coord, *Block]) Option {
	return func(o *storeOptions) {
		o.cache = c
	}
}

// WithCollector sets the statistics collector
func WithCollector(collector stats.Collector) Option {
	return func(o *storeOptions) {
		o.collector = collector
	}
}
