package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/pointstore/internal/chunk"
	"github.com/hupe1980/pointstore/internal/hierarchy"
	"github.com/hupe1980/pointstore/internal/octree"
	"github.com/hupe1980/pointstore/internal/resource"
	"github.com/hupe1980/pointstore/model"
)

// ErrInvalidConfig is wrapped by every ConfigError.
var ErrInvalidConfig = errors.New("ingest: invalid config")

// ConfigError rejects a configuration or input batch.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("ingest: invalid %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// Config configures a Pipeline.
type Config struct {
	Octree      octree.Config
	Format      model.PointFormat
	Scale       model.Scale
	Compression chunk.Compression
	// Workers bounds concurrent chunk encoders. Zero uses GOMAXPROCS.
	Workers int
	// Resources, if set, throttles output and caps encoders across pipelines.
	Resources *resource.Controller
	Logger    *slog.Logger
	// DatasetID overrides the generated dataset id.
	DatasetID uuid.UUID
	// Now overrides the creation timestamp source.
	Now func() time.Time
}

func (c *Config) validate() error {
	if err := c.Octree.Validate(); err != nil {
		return &ConfigError{Field: "octree", Reason: err.Error()}
	}
	if !c.Format.Valid() {
		return &ConfigError{Field: "format", Reason: fmt.Sprintf("unknown point format %d", c.Format)}
	}
	if err := c.Scale.Validate(); err != nil {
		return &ConfigError{Field: "scale", Reason: err.Error()}
	}
	if !c.Compression.Valid() {
		return &ConfigError{Field: "compression", Reason: fmt.Sprintf("unknown compression %d", c.Compression)}
	}
	if c.Workers < 0 {
		return &ConfigError{Field: "workers", Reason: fmt.Sprintf("must not be negative, got %d", c.Workers)}
	}
	return nil
}

// Result summarizes one ingestion.
type Result struct {
	DatasetID  uuid.UUID
	Points     int
	Nodes      int
	Leaves     int
	Chunks     int
	Depth      int
	Bytes      int64
	ChunkBytes int64
	Duration   time.Duration
}

// Pipeline runs ingestions with a fixed configuration. It is safe for
// concurrent use.
type Pipeline struct {
	cfg Config
}

// New validates cfg and returns a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Pipeline{cfg: cfg}, nil
}

// Run writes the index of points to w. points is not modified.
func (p *Pipeline) Run(ctx context.Context, w io.Writer, points []model.Point) (Result, error) {
	start := time.Now()
	if len(points) == 0 {
		return Result{}, &ConfigError{Field: "points", Reason: "no points to ingest"}
	}
	for i := range points {
		if !points[i].Finite() {
			return Result{}, &ConfigError{Field: "points", Reason: fmt.Sprintf("point %d has a non-finite coordinate: %v", i, points[i])}
		}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	tree, err := octree.Partition(points, p.cfg.Octree)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: partition: %w", err)
	}
	p.cfg.Logger.Debug("partitioned", "points", len(points), "nodes", tree.Len(), "depth", tree.Depth())

	src, err := p.encode(ctx, tree)
	if err != nil {
		return Result{}, err
	}

	id := p.cfg.DatasetID
	if id == uuid.Nil {
		id = uuid.New()
	}
	meta := hierarchy.Meta{
		DatasetID:   id,
		CreatedAt:   p.cfg.Now(),
		Format:      p.cfg.Format,
		Compression: p.cfg.Compression,
		Scale:       p.cfg.Scale,
		MaxDepth:    p.cfg.Octree.MaxDepth,
	}
	out := resource.NewRateLimitedWriter(ctx, w, p.cfg.Resources)
	ws, err := hierarchy.Write(out, src, meta)
	if err != nil {
		return Result{}, fmt.Errorf("ingest: %w", err)
	}

	res := Result{
		DatasetID:  id,
		Points:     len(points),
		Nodes:      ws.Nodes,
		Leaves:     ws.Leaves,
		Chunks:     ws.Chunks,
		Depth:      tree.Depth(),
		Bytes:      ws.Bytes,
		ChunkBytes: ws.ChunkBytes,
		Duration:   time.Since(start),
	}
	p.cfg.Logger.Debug("written", "dataset", id, "bytes", res.Bytes, "chunks", res.Chunks, "duration", res.Duration)
	return res, nil
}

func (p *Pipeline) encode(ctx context.Context, tree *octree.Tree) (*hierarchy.Encoded, error) {
	src := &hierarchy.Encoded{T: tree, Chunks: make([][]byte, tree.Len())}
	opts := chunk.EncodeOptions{Format: p.cfg.Format, Scale: p.cfg.Scale, Compression: p.cfg.Compression}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Workers)
	for id := uint32(0); id < uint32(tree.Len()); id++ {
		if !tree.HasChunk(id) {
			continue
		}
		g.Go(func() error {
			if err := p.cfg.Resources.AcquireWorker(gctx); err != nil {
				return err
			}
			defer p.cfg.Resources.ReleaseWorker()

			data, err := chunk.Encode(tree.ChunkPoints(id), tree.Node(id).BBox, opts)
			if err != nil {
				if errors.Is(err, chunk.ErrOverflow) {
					return &ConfigError{Field: "scale", Reason: fmt.Sprintf("node %d: %v", id, err)}
				}
				return fmt.Errorf("ingest: encode node %d: %w", id, err)
			}
			src.Chunks[id] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return src, nil
}
