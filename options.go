package pointstore

import (
	"fmt"
	"log/slog"

	"github.com/hupe1980/pointstore/internal/chunk"
	"github.com/hupe1980/pointstore/internal/query"
	"github.com/hupe1980/pointstore/model"
)

// Compression selects the block codec of stored chunks.
type Compression = chunk.Compression

const (
	CompressionNone   = chunk.CompressionNone
	CompressionLZ4    = chunk.CompressionLZ4
	CompressionZstd   = chunk.CompressionZstd
	CompressionSnappy = chunk.CompressionSnappy
)

// ParseCompression parses "none", "lz4", "zstd" or "snappy".
func ParseCompression(name string) (Compression, error) { return chunk.ParseCompression(name) }

const (
	// DefaultMaxPointsPerLeaf is the default leaf split threshold.
	DefaultMaxPointsPerLeaf = 4096
	// DefaultMaxDepth is the default maximum tree depth.
	DefaultMaxDepth = 12
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector

	maxPointsPerLeaf int
	maxDepth         int
	overviewPoints   int
	scale            model.Scale
	compression      Compression
	format           model.PointFormat
	workers          int
	ioLimit          int64

	chunkCacheBytes int64
	memoryLimit     int64
}

// Option configures Ingest and Open.
//
// Ingestion options are ignored by Open and vice versa.
type Option func(*options)

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := pointstore.NewJSONLogger(slog.LevelInfo)
//	cloud, _ := pointstore.Open(ctx, store, "a.pcx", pointstore.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &pointstore.BasicMetricsCollector{}
//	cloud, _ := pointstore.Open(ctx, store, "a.pcx", pointstore.WithMetricsCollector(metrics))
//	// ... run queries ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithMaxPointsPerLeaf sets the number of points above which a node splits.
func WithMaxPointsPerLeaf(n int) Option {
	return func(o *options) { o.maxPointsPerLeaf = n }
}

// WithMaxDepth bounds the tree depth. It must be in [1, 32].
func WithMaxDepth(depth int) Option {
	return func(o *options) { o.maxDepth = depth }
}

// WithOverviewPoints stores a sample of up to n points per internal node,
// enabling WithLOD queries. Zero (the default) disables overviews.
func WithOverviewPoints(n int) Option {
	return func(o *options) { o.overviewPoints = n }
}

// WithScale sets the fixed-point precision per axis.
func WithScale(s model.Scale) Option {
	return func(o *options) { o.scale = s }
}

// WithCompression selects the chunk block codec. The default is zstd.
func WithCompression(c Compression) Option {
	return func(o *options) { o.compression = c }
}

// WithPointFormat selects which attributes are stored.
func WithPointFormat(f model.PointFormat) Option {
	return func(o *options) { o.format = f }
}

// WithWorkers bounds concurrent chunk encoders. Zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithIOLimit throttles ingestion writes to bytesPerSec. Zero is unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) { o.ioLimit = bytesPerSec }
}

// WithChunkCache keeps up to bytes of decoded chunks across queries of an
// opened cloud. Zero disables the cache.
func WithChunkCache(bytes int64) Option {
	return func(o *options) { o.chunkCacheBytes = bytes }
}

// WithMemoryLimit caps the memory the chunk cache may hold, independent of
// its capacity. Zero is unlimited.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) { o.memoryLimit = bytes }
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		maxPointsPerLeaf: DefaultMaxPointsPerLeaf,
		maxDepth:         DefaultMaxDepth,
		scale:            model.DefaultScale,
		compression:      CompressionZstd,
		format:           model.FormatXYZI,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) validateOpen() error {
	if o.chunkCacheBytes < 0 {
		return &ConfigError{Field: "chunk_cache", Reason: fmt.Sprintf("must not be negative, got %d", o.chunkCacheBytes)}
	}
	if o.memoryLimit < 0 {
		return &ConfigError{Field: "memory_limit", Reason: fmt.Sprintf("must not be negative, got %d", o.memoryLimit)}
	}
	return nil
}

func (o *options) validateIngest() error {
	if o.ioLimit < 0 {
		return &ConfigError{Field: "io_limit", Reason: fmt.Sprintf("must not be negative, got %d", o.ioLimit)}
	}
	return nil
}

// Filter is an attribute predicate usable with WithFilter.
type Filter = query.Predicate

// Range keeps points whose attribute lies in [lo, hi]. Infinite bounds are
// allowed.
func Range(attr model.Attribute, lo, hi float64) Filter {
	return query.RangePredicate{Attr: attr, Min: lo, Max: hi}
}

// Within keeps points inside box, in addition to the query box.
func Within(box model.BBox) Filter {
	return query.BoxPredicate{Box: box}
}

// All combines filters with logical AND.
func All(filters ...Filter) Filter {
	return query.All(filters...)
}

// Stats records the work done by one query.
type Stats = query.Stats

// FullDetail is the WithLOD value that reads leaves.
const FullDetail = query.FullDetail

type queryOptions struct {
	limit       int
	filters     []Filter
	lod         int
	coordsOnly  bool
	parallelism int
	stats       *Stats
}

// QueryOption configures a single query.
type QueryOption func(*queryOptions)

// WithLimit caps the number of returned points. Zero is unlimited.
func WithLimit(n int) QueryOption {
	return func(q *queryOptions) { q.limit = n }
}

// WithFilter adds a filter. Multiple filters must all match.
func WithFilter(f Filter) QueryOption {
	return func(q *queryOptions) { q.filters = append(q.filters, f) }
}

// WithLOD reads overview samples at the given depth instead of full leaves.
// Subtrees without an overview at that depth fall back to their leaves.
func WithLOD(depth int) QueryOption {
	return func(q *queryOptions) { q.lod = depth }
}

// WithCoordinatesOnly returns points with zero attributes. Attributes are
// still decoded when a filter needs them.
func WithCoordinatesOnly() QueryOption {
	return func(q *queryOptions) { q.coordsOnly = true }
}

// WithParallelism decodes up to n chunks concurrently. The result sequence
// is identical to a sequential query.
func WithParallelism(n int) QueryOption {
	return func(q *queryOptions) { q.parallelism = n }
}

// WithStats fills s when the query finishes. s must not be read before the
// iteration ends.
func WithStats(s *Stats) QueryOption {
	return func(q *queryOptions) { q.stats = s }
}

func applyQueryOptions(optFns []QueryOption) queryOptions {
	q := queryOptions{lod: FullDetail}
	for _, fn := range optFns {
		if fn != nil {
			fn(&q)
		}
	}
	return q
}
