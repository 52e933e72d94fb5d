package pointstore

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/pointstore/blobstore"
	"github.com/hupe1980/pointstore/internal/ingest"
	"github.com/hupe1980/pointstore/internal/octree"
	"github.com/hupe1980/pointstore/internal/resource"
	"github.com/hupe1980/pointstore/model"
)

// IngestResult summarizes one ingestion.
type IngestResult = ingest.Result

// Ingest partitions the points of buf and writes them as the blob name.
//
// The blob becomes visible only when the whole index has been written. On
// any error the upload is aborted and a previous blob under name stays
// untouched. buf is not modified.
func Ingest(ctx context.Context, store blobstore.BlobStore, name string, buf *model.Buffer, opts ...Option) (IngestResult, error) {
	o := applyOptions(opts)
	start := time.Now()

	res, err := runIngest(ctx, store, name, buf, &o)
	err = translateError(err)

	o.metricsCollector.RecordIngest(res.Points, res.Bytes, time.Since(start), err)
	o.logger.LogIngest(ctx, name, res, err)
	if err != nil {
		return IngestResult{}, err
	}
	return res, nil
}

func runIngest(ctx context.Context, store blobstore.BlobStore, name string, buf *model.Buffer, o *options) (IngestResult, error) {
	if buf == nil || buf.Len() == 0 {
		return IngestResult{}, &ConfigError{Field: "points", Reason: "no points to ingest"}
	}
	if err := o.validateIngest(); err != nil {
		return IngestResult{}, err
	}

	p, err := ingest.New(ingest.Config{
		Octree: octree.Config{
			MaxPointsPerLeaf: o.maxPointsPerLeaf,
			MaxDepth:         o.maxDepth,
			OverviewPoints:   o.overviewPoints,
		},
		Format:      o.format,
		Scale:       o.scale,
		Compression: o.compression,
		Workers:     o.workers,
		Resources: resource.NewController(resource.Config{
			MaxWorkers:         int64(o.workers),
			IOLimitBytesPerSec: o.ioLimit,
		}),
		Logger: o.logger.WithCloud(name).Logger,
	})
	if err != nil {
		return IngestResult{}, err
	}

	w, err := store.Create(ctx, name)
	if err != nil {
		return IngestResult{}, fmt.Errorf("pointstore: create %s: %w", name, err)
	}
	res, err := p.Run(ctx, w, buf.Points())
	if err != nil {
		_ = w.Abort()
		return IngestResult{}, err
	}
	if err := w.Close(); err != nil {
		return IngestResult{}, fmt.Errorf("pointstore: commit %s: %w", name, err)
	}
	return res, nil
}
