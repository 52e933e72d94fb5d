package pointstore

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; see the
// promcollector package for Prometheus.
type MetricsCollector interface {
	// RecordIngest is called after each ingestion.
	// bytes is the size of the written blob, err is nil if successful.
	RecordIngest(points int, bytes int64, duration time.Duration, err error)

	// RecordQuery is called when a query iterator finishes.
	// returned is the number of emitted points, decoded the number of chunks.
	RecordQuery(returned, decoded int, duration time.Duration, err error)

	// RecordDecode is called for every chunk read and decoded from storage.
	// Cache hits are not reported.
	RecordDecode(points int, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordIngest(int, int64, time.Duration, error) {}
func (NoopMetricsCollector) RecordQuery(int, int, time.Duration, error)    {}
func (NoopMetricsCollector) RecordDecode(int, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	IngestCount      atomic.Int64
	IngestErrors     atomic.Int64
	IngestPoints     atomic.Int64
	IngestBytes      atomic.Int64
	QueryCount       atomic.Int64
	QueryErrors      atomic.Int64
	QueryPoints      atomic.Int64
	QueryTotalNanos  atomic.Int64
	DecodeCount      atomic.Int64
	DecodeErrors     atomic.Int64
	DecodeBytes      atomic.Int64
	DecodeTotalNanos atomic.Int64
}

// RecordIngest implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIngest(points int, bytes int64, _ time.Duration, err error) {
	b.IngestCount.Add(1)
	if err != nil {
		b.IngestErrors.Add(1)
		return
	}
	b.IngestPoints.Add(int64(points))
	b.IngestBytes.Add(bytes)
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(returned, _ int, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryPoints.Add(int64(returned))
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
	}
}

// RecordDecode implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDecode(_ int, bytes int64, duration time.Duration, err error) {
	b.DecodeCount.Add(1)
	b.DecodeBytes.Add(bytes)
	b.DecodeTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.DecodeErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		IngestCount:    b.IngestCount.Load(),
		IngestErrors:   b.IngestErrors.Load(),
		IngestPoints:   b.IngestPoints.Load(),
		IngestBytes:    b.IngestBytes.Load(),
		QueryCount:     b.QueryCount.Load(),
		QueryErrors:    b.QueryErrors.Load(),
		QueryPoints:    b.QueryPoints.Load(),
		QueryAvgNanos:  avg(b.QueryTotalNanos.Load(), b.QueryCount.Load()),
		DecodeCount:    b.DecodeCount.Load(),
		DecodeErrors:   b.DecodeErrors.Load(),
		DecodeBytes:    b.DecodeBytes.Load(),
		DecodeAvgNanos: avg(b.DecodeTotalNanos.Load(), b.DecodeCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	IngestCount    int64
	IngestErrors   int64
	IngestPoints   int64
	IngestBytes    int64
	QueryCount     int64
	QueryErrors    int64
	QueryPoints    int64
	QueryAvgNanos  int64
	DecodeCount    int64
	DecodeErrors   int64
	DecodeBytes    int64
	DecodeAvgNanos int64
}
