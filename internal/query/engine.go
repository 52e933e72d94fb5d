package query

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pointstore/internal/cache"
	"github.com/hupe1980/pointstore/internal/chunk"
	"github.com/hupe1980/pointstore/internal/hierarchy"
	"github.com/hupe1980/pointstore/model"
)

// FullDetail disables level-of-detail selection.
const FullDetail = -1

// Request describes a range query.
type Request struct {
	Box model.BBox
	// MaxResults caps the number of emitted points. Zero means unlimited.
	MaxResults int
	Filters    []Predicate
	// LOD selects overview chunks at that depth instead of leaves. FullDetail
	// (-1) reads leaves.
	LOD int
	// CoordinatesOnly zeroes attributes and skips decoding them when no filter
	// needs them.
	CoordinatesOnly bool
	// Parallelism > 1 decodes that many chunks concurrently.
	Parallelism int
	// Stats, if set, is reset and filled during iteration.
	Stats *Stats
}

func (r *Request) validate() error {
	if err := r.Box.Validate(); err != nil {
		return &ConfigError{Field: "bbox", Reason: err.Error()}
	}
	if r.MaxResults < 0 {
		return &ConfigError{Field: "max_results", Reason: fmt.Sprintf("must not be negative, got %d", r.MaxResults)}
	}
	if r.LOD < FullDetail {
		return &ConfigError{Field: "lod", Reason: fmt.Sprintf("must be >= -1, got %d", r.LOD)}
	}
	if r.Parallelism < 0 {
		return &ConfigError{Field: "parallelism", Reason: fmt.Sprintf("must not be negative, got %d", r.Parallelism)}
	}
	for _, f := range r.Filters {
		if f == nil {
			return &ConfigError{Field: "filter", Reason: "nil predicate"}
		}
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Config configures an Engine.
type Config struct {
	// Dataset keys cache entries. Defaults to the index header's dataset id.
	Dataset uuid.UUID
	// Cache holds decoded chunks across queries. Nil disables caching.
	Cache  cache.Cache
	Logger *slog.Logger
	// OnDecode is called once per decoded chunk.
	OnDecode func(points int, bytes int64, d time.Duration, err error)
}

// Engine answers range queries against one index. It is safe for concurrent use.
type Engine struct {
	idx      *hierarchy.Index
	dataset  uuid.UUID
	loader   *cache.Loader
	logger   *slog.Logger
	onDecode func(int, int64, time.Duration, error)
	opts     chunk.DecodeOptions
}

// New creates an engine over idx.
func New(idx *hierarchy.Index, cfg Config) *Engine {
	h := idx.Header()
	e := &Engine{
		idx:      idx,
		dataset:  cfg.Dataset,
		loader:   cache.NewLoader(cfg.Cache),
		logger:   cfg.Logger,
		onDecode: cfg.OnDecode,
		opts: chunk.DecodeOptions{
			Format:      h.Format,
			Scale:       h.Scale,
			Compression: h.Compression,
		},
	}
	if e.dataset == uuid.Nil {
		e.dataset = h.DatasetID
	}
	if e.logger == nil {
		e.logger = slog.New(slog.DiscardHandler)
	}
	return e
}

// Index returns the underlying index.
func (e *Engine) Index() *hierarchy.Index { return e.idx }

// run holds the state of one query.
type run struct {
	e       *Engine
	req     *Request
	stats   *Stats
	pruners []NodePruner
	attrs   bool
}

// Stream returns the matching points in traversal order. Per-chunk failures
// are yielded as *LeafError values; other errors end the sequence.
func (e *Engine) Stream(ctx context.Context, req Request) iter.Seq2[model.Point, error] {
	return func(yield func(model.Point, error) bool) {
		if err := req.validate(); err != nil {
			yield(model.Point{}, err)
			return
		}
		r := &run{e: e, req: &req, stats: req.Stats}
		if r.stats == nil {
			r.stats = &Stats{}
		}
		r.stats.reset()
		r.attrs = !req.CoordinatesOnly
		for _, f := range req.Filters {
			if pr, ok := f.(NodePruner); ok {
				r.pruners = append(r.pruners, pr)
			}
			if usesAttributes(f) {
				r.attrs = true
			}
		}

		start := time.Now()
		defer func() {
			e.logger.Debug("query finished",
				"bbox", req.Box.String(),
				"visited", r.stats.Visited,
				"pruned", r.stats.Pruned,
				"decoded", r.stats.Decoded,
				"returned", r.stats.Returned,
				"duration", time.Since(start),
			)
		}()

		root := e.idx.Root()
		if !req.Box.Intersects(root.BBox) {
			r.stats.Visited++
			r.stats.Pruned++
			return
		}

		if req.Parallelism > 1 {
			r.parallel(ctx, yield)
			return
		}
		r.sequential(ctx, yield)
	}
}

// isTarget reports whether n is read instead of descended into.
func (r *run) isTarget(n *hierarchy.Node) bool {
	if n.IsLeaf() {
		return true
	}
	return r.req.LOD >= 0 && int(n.Depth) >= r.req.LOD && n.HasChunk()
}

func (r *run) prune(n *hierarchy.Node) bool {
	if !r.req.Box.Intersects(n.BBox) {
		return true
	}
	for _, p := range r.pruners {
		if !p.MayMatch(n) {
			return true
		}
	}
	return false
}

// walk visits target nodes in traversal order until visit returns false.
func (r *run) walk(ctx context.Context, visit func(n *hierarchy.Node) bool) error {
	stack := []uint32{0}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := r.e.idx.Node(id)
		r.stats.Visited++
		if r.prune(n) {
			r.stats.Pruned++
			continue
		}
		if r.isTarget(n) {
			if !visit(n) {
				return nil
			}
			continue
		}
		for c := int(n.ChildCount) - 1; c >= 0; c-- {
			stack = append(stack, n.FirstChild+uint32(c))
		}
	}
	return nil
}

type loaded struct {
	points []model.Point
	hit    bool
	err    error
}

func (r *run) load(ctx context.Context, n *hierarchy.Node) loaded {
	key := cache.Key{Dataset: r.e.dataset, NodeID: n.ID, CoordsOnly: !r.attrs}
	opts := r.e.opts
	opts.SkipAttributes = !r.attrs

	pts, hit, err := r.e.loader.Load(ctx, key, func(ctx context.Context) ([]model.Point, error) {
		start := time.Now()
		raw, err := r.e.idx.ReadChunk(ctx, n.ID, nil)
		if err == nil {
			var pts []model.Point
			pts, err = chunk.Decode(raw, n.BBox, opts)
			if err == nil {
				r.e.recordDecode(len(pts), int64(n.ChunkLength), time.Since(start), nil)
				return pts, nil
			}
		}
		if !isContextErr(err) {
			r.e.recordDecode(0, int64(n.ChunkLength), time.Since(start), err)
		}
		return nil, err
	})
	if err != nil && !isContextErr(err) {
		var ce *hierarchy.ChunkError
		if errors.As(err, &ce) {
			err = ce.Err
		}
		err = &LeafError{NodeID: n.ID, Offset: n.ChunkOffset, Length: n.ChunkLength, Err: err}
	}
	return loaded{points: pts, hit: hit, err: err}
}

func (e *Engine) recordDecode(points int, bytes int64, d time.Duration, err error) {
	if e.onDecode != nil {
		e.onDecode(points, bytes, d, err)
	}
}

// emit yields the matching points of one chunk and reports whether the
// traversal should continue.
func (r *run) emit(n *hierarchy.Node, l loaded, yield func(model.Point, error) bool) bool {
	if l.err != nil {
		if isContextErr(l.err) {
			yield(model.Point{}, l.err)
			return false
		}
		r.stats.Failed++
		r.e.logger.Debug("chunk failed", "node", n.ID, "error", l.err)
		return yield(model.Point{}, l.err)
	}
	r.stats.recordDecode(n.ID, int64(n.ChunkLength), l.hit)

	for i := range l.points {
		p := l.points[i]
		if !r.req.Box.Contains(&p) || !r.match(&p) {
			continue
		}
		if r.req.CoordinatesOnly {
			p.Intensity, p.Time = 0, 0
		}
		r.stats.Returned++
		if !yield(p, nil) {
			return false
		}
		if r.req.MaxResults > 0 && r.stats.Returned >= r.req.MaxResults {
			return false
		}
	}
	return true
}

func (r *run) match(p *model.Point) bool {
	for _, f := range r.req.Filters {
		if !f.Match(p) {
			return false
		}
	}
	return true
}

func (r *run) sequential(ctx context.Context, yield func(model.Point, error) bool) {
	err := r.walk(ctx, func(n *hierarchy.Node) bool {
		return r.emit(n, r.load(ctx, n), yield)
	})
	if err != nil {
		yield(model.Point{}, err)
	}
}

// parallel gathers the targets from the in-memory index, decodes them in
// windows and emits each window in traversal order.
func (r *run) parallel(ctx context.Context, yield func(model.Point, error) bool) {
	var targets []*hierarchy.Node
	if err := r.walk(ctx, func(n *hierarchy.Node) bool {
		targets = append(targets, n)
		return true
	}); err != nil {
		yield(model.Point{}, err)
		return
	}

	window := r.req.Parallelism * 2
	results := make([]loaded, window)
	for start := 0; start < len(targets); start += window {
		batch := targets[start:min(start+window, len(targets))]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.req.Parallelism)
		for i, n := range batch {
			g.Go(func() error {
				results[i] = r.load(gctx, n)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			yield(model.Point{}, err)
			return
		}

		for i, n := range batch {
			if !r.emit(n, results[i], yield) {
				return
			}
			results[i] = loaded{}
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
