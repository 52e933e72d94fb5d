// Package pointstore is a spatially indexed, compressed point cloud store.
//
// Ingest partitions an unsorted batch of points into an octree and writes it
// as one immutable blob: a fixed header, a node table and one compressed
// chunk per leaf. Open reads only the header and node table; range queries
// then decode just the chunks whose boxes intersect the query box.
//
// # Quick Start
//
//	ctx := context.Background()
//	store := blobstore.NewLocalStore("./clouds")
//
//	buf := model.NewBuffer(len(points))
//	buf.Append(points...)
//	res, err := pointstore.Ingest(ctx, store, "site-a.pcx", buf)
//
//	cloud, err := pointstore.Open(ctx, store, "site-a.pcx")
//	defer cloud.Close()
//
//	box := model.NewBBox(10.0, 50.0, 0, 10.1, 50.1, 500)
//	for p, err := range cloud.Query(ctx, box, pointstore.WithLimit(1000)) {
//	    if err != nil {
//	        // a *DecodeError affects one leaf; iteration may continue
//	        continue
//	    }
//	    fmt.Println(p)
//	}
//
// # Storage
//
// Any blobstore.BlobStore works: a local directory (mmap reads, atomic
// rename on commit), memory, Amazon S3 (blobstore/s3) or MinIO
// (blobstore/minio). A failed ingestion never replaces an existing blob.
//
// # Queries
//
// Queries stream points in a fixed depth-first order, so repeated queries
// and parallel decoding (WithParallelism) return identical sequences.
// Attribute filters (WithFilter(Range(...))) prune whole subtrees using the
// intensity range stored per node. WithLOD reads overview samples instead
// of full leaves when the cloud was ingested WithOverviewPoints.
package pointstore
