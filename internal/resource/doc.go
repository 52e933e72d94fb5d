// Package resource governs the shared limits of a store process.
//
//   - Memory: a byte budget for decoded chunk caches (fail-fast, never blocks)
//   - Workers: a global cap on concurrent chunk encoders across ingestions
//   - IO: a token bucket throttling ingestion writes so that queries served
//     from the same disk are not starved
//
// Usage:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   256 << 20,
//	    MaxWorkers:         4,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
//
//	w := resource.NewRateLimitedWriter(ctx, blob, rc)
//
// A nil *Controller is valid and imposes no limits.
package resource
