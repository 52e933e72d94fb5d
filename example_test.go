package pointstore_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/pointstore"
	"github.com/hupe1980/pointstore/blobstore"
	"github.com/hupe1980/pointstore/model"
)

// Example demonstrates ingesting a batch and running a range query.
func Example() {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	buf := model.BufferOf(
		model.Point{X: 0, Y: 0, Z: 0, Intensity: 10},
		model.Point{X: 1, Y: 1, Z: 1, Intensity: 20},
		model.Point{X: 2, Y: 2, Z: 2, Intensity: 30},
		model.Point{X: 3, Y: 3, Z: 3, Intensity: 40},
	)
	if _, err := pointstore.Ingest(ctx, store, "demo.pcx", buf, pointstore.WithMaxPointsPerLeaf(1)); err != nil {
		log.Fatal(err)
	}

	cloud, err := pointstore.Open(ctx, store, "demo.pcx")
	if err != nil {
		log.Fatal(err)
	}
	defer cloud.Close()

	for p, err := range cloud.Query(ctx, model.NewBBox(0, 0, 0, 1, 1, 1)) {
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(p)
	}
	// Output:
	// (0, 0, 0; i=10)
	// (1, 1, 1; i=20)
}

// Example_filter demonstrates an attribute filter combined with a limit.
func Example_filter() {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()

	buf := model.NewBuffer(100)
	for i := range 100 {
		buf.Append(model.Point{X: float64(i), Y: float64(i % 10), Z: 0, Intensity: uint16(i)})
	}
	if _, err := pointstore.Ingest(ctx, store, "grid.pcx", buf, pointstore.WithMaxPointsPerLeaf(8)); err != nil {
		log.Fatal(err)
	}

	cloud, err := pointstore.Open(ctx, store, "grid.pcx")
	if err != nil {
		log.Fatal(err)
	}
	defer cloud.Close()

	n, err := cloud.Count(ctx, cloud.Bounds(),
		pointstore.WithFilter(pointstore.Range(model.AttrIntensity, 90, 99)))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(n)
	// Output: 10
}
