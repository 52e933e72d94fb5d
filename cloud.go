package pointstore

import (
	"context"
	"errors"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/hupe1980/pointstore/blobstore"
	"github.com/hupe1980/pointstore/internal/cache"
	"github.com/hupe1980/pointstore/internal/hierarchy"
	"github.com/hupe1980/pointstore/internal/query"
	"github.com/hupe1980/pointstore/internal/resource"
	"github.com/hupe1980/pointstore/model"
)

// Cloud is an opened point cloud. It is safe for concurrent use; any number
// of queries may run at once.
type Cloud struct {
	name   string
	opts   options
	idx    *hierarchy.Index
	engine *query.Engine
	cache  cache.Cache
	info   Info

	blob *guardedBlob
}

// Open reads and validates the header and node table of the blob name.
// Chunks are read lazily by queries.
func Open(ctx context.Context, store blobstore.BlobStore, name string, opts ...Option) (*Cloud, error) {
	o := applyOptions(opts)
	c, err := open(ctx, store, name, o)
	var info Info
	if c != nil {
		info = c.info
	}
	o.logger.LogOpen(ctx, name, info, err)
	return c, err
}

func open(ctx context.Context, store blobstore.BlobStore, name string, o options) (*Cloud, error) {
	if err := o.validateOpen(); err != nil {
		return nil, err
	}
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, openError(name, err)
	}
	blob := &guardedBlob{b: b}

	idx, err := hierarchy.Open(blob, b.Size())
	if err != nil {
		_ = b.Close()
		return nil, openError(name, err)
	}

	c := &Cloud{name: name, opts: o, idx: idx, blob: blob}
	if o.chunkCacheBytes > 0 {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: o.memoryLimit})
		c.cache = cache.NewSharded(o.chunkCacheBytes, rc)
	}
	c.engine = query.New(idx, query.Config{
		Cache:    c.cache,
		Logger:   o.logger.WithCloud(name).Logger,
		OnDecode: o.metricsCollector.RecordDecode,
	})
	c.info = newInfo(name, idx)
	return c, nil
}

// Name returns the blob name the cloud was opened from.
func (c *Cloud) Name() string { return c.name }

// Bounds returns the tight bounding box of all points.
func (c *Cloud) Bounds() model.BBox { return c.idx.Root().BBox }

// PointCount returns the number of stored points.
func (c *Cloud) PointCount() uint64 { return c.idx.Header().PointCount }

// Levels returns the number of nodes per depth.
func (c *Cloud) Levels() []int { return c.idx.Levels() }

// Info returns a summary of the stored index.
func (c *Cloud) Info() Info { return c.info }

// Query streams the points inside box in a deterministic depth-first order.
//
// Invalid arguments yield a single *ConfigError. A leaf that cannot be
// decoded yields a *DecodeError; the caller may keep iterating to receive the
// remaining leaves. Context cancellation ends the sequence with ctx.Err().
func (c *Cloud) Query(ctx context.Context, box model.BBox, opts ...QueryOption) iter.Seq2[model.Point, error] {
	q := applyQueryOptions(opts)
	return func(yield func(model.Point, error) bool) {
		stats := q.stats
		if stats == nil {
			stats = &Stats{}
		}
		start := time.Now()
		var lastErr error

		if c.blob.isClosed() {
			lastErr = ErrClosed
			yield(model.Point{}, ErrClosed)
		} else {
			req := query.Request{
				Box:             box,
				MaxResults:      q.limit,
				Filters:         q.filters,
				LOD:             q.lod,
				CoordinatesOnly: q.coordsOnly,
				Parallelism:     q.parallelism,
				Stats:           stats,
			}
			for p, err := range c.engine.Stream(ctx, req) {
				if err != nil {
					err = c.translateQueryError(err)
					lastErr = err
				}
				if !yield(p, err) {
					break
				}
			}
		}

		d := time.Since(start)
		c.opts.metricsCollector.RecordQuery(stats.Returned, stats.Decoded, d, lastErr)
		c.opts.logger.LogQuery(ctx, stats, d, lastErr)
	}
}

func (c *Cloud) translateQueryError(err error) error {
	if c.blob.isClosed() && errors.Is(err, ErrClosed) {
		return ErrClosed
	}
	return translateError(err)
}

// Collect gathers the points of Query. It stops at the first error and
// returns the points gathered so far.
func (c *Cloud) Collect(ctx context.Context, box model.BBox, opts ...QueryOption) ([]model.Point, error) {
	var out []model.Point
	for p, err := range c.Query(ctx, box, opts...) {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Count returns the number of points Query would yield. It stops at the
// first error.
func (c *Cloud) Count(ctx context.Context, box model.BBox, opts ...QueryOption) (int, error) {
	n := 0
	for _, err := range c.Query(ctx, box, append(slices.Clip(opts), WithCoordinatesOnly())...) {
		if err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Info summarizes a stored cloud.
type Info struct {
	Name        string
	DatasetID   uuid.UUID
	CreatedAt   time.Time
	Format      model.PointFormat
	Compression Compression
	Scale       model.Scale
	Bounds      model.BBox
	Points      uint64
	Nodes       int
	Leaves      int
	Depth       int
	MaxDepth    int
	// Size is the blob size in bytes.
	Size int64
	// Occupancy describes the number of points per leaf.
	Occupancy Occupancy
}

// Occupancy summarizes the leaf point counts.
type Occupancy struct {
	Min, Max     float64
	Mean, StdDev float64
}

func newInfo(name string, idx *hierarchy.Index) Info {
	h := idx.Header()
	levels := idx.Levels()
	info := Info{
		Name:        name,
		DatasetID:   h.DatasetID,
		CreatedAt:   h.CreatedAt,
		Format:      h.Format,
		Compression: h.Compression,
		Scale:       h.Scale,
		Bounds:      h.Bounds,
		Points:      h.PointCount,
		Nodes:       idx.Len(),
		Leaves:      int(h.LeafCount),
		Depth:       len(levels) - 1,
		MaxDepth:    int(h.MaxDepth),
		Size:        idx.Size(),
	}

	counts := make([]float64, 0, h.LeafCount)
	for id := 0; id < idx.Len(); id++ {
		if n := idx.Node(uint32(id)); n.IsLeaf() {
			counts = append(counts, float64(n.PointCount))
		}
	}
	if len(counts) > 0 {
		mean, std := stat.Mean(counts, nil), 0.0
		if len(counts) > 1 {
			std = stat.StdDev(counts, nil)
		}
		info.Occupancy = Occupancy{
			Min:    floats.Min(counts),
			Max:    floats.Max(counts),
			Mean:   mean,
			StdDev: std,
		}
	}
	return info
}

// guardedBlob makes reads after Close fail instead of touching released
// memory. Reads hold the read lock so Close waits for them.
type guardedBlob struct {
	b blobstore.Blob

	mu     sync.RWMutex
	closed bool
}

func (g *guardedBlob) ReadAt(p []byte, off int64) (int, error) {
	return g.ReadAtContext(context.Background(), p, off)
}

func (g *guardedBlob) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return 0, ErrClosed
	}
	if cr, ok := g.b.(blobstore.ContextReader); ok {
		return cr.ReadAtContext(ctx, p, off)
	}
	return g.b.ReadAt(p, off)
}

func (g *guardedBlob) isClosed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}

func (g *guardedBlob) close() (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false, nil
	}
	g.closed = true
	return true, g.b.Close()
}
