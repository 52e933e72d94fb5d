package promcollector

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/pointstore"
)

const (
	opIngest = "ingest"
	opQuery  = "query"
	opDecode = "decode"
)

// Collector implements pointstore.MetricsCollector with Prometheus vectors.
type Collector struct {
	ops     *prometheus.CounterVec
	latency *prometheus.HistogramVec
	points  *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	decodeQ prometheus.Histogram
}

var _ pointstore.MetricsCollector = (*Collector)(nil)

// New creates a collector and registers its metrics with reg.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Number of ingestions, queries and chunk decodes by status.",
		}, []string{"op", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of ingestions, queries and chunk decodes.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"op"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_total",
			Help:      "Points ingested, returned by queries or decoded from chunks.",
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes written by ingestions or read for chunk decodes.",
		}, []string{"op"}),
		decodeQ: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_decoded_chunks",
			Help:      "Chunks decoded per query.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	for _, m := range []prometheus.Collector{c.ops, c.latency, c.points, c.bytes, c.decodeQ} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordIngest implements pointstore.MetricsCollector.
func (c *Collector) RecordIngest(points int, bytes int64, d time.Duration, err error) {
	c.ops.WithLabelValues(opIngest, status(err)).Inc()
	c.latency.WithLabelValues(opIngest).Observe(d.Seconds())
	if err == nil {
		c.points.WithLabelValues(opIngest).Add(float64(points))
		c.bytes.WithLabelValues(opIngest).Add(float64(bytes))
	}
}

// RecordQuery implements pointstore.MetricsCollector.
func (c *Collector) RecordQuery(returned, decoded int, d time.Duration, err error) {
	c.ops.WithLabelValues(opQuery, status(err)).Inc()
	c.latency.WithLabelValues(opQuery).Observe(d.Seconds())
	c.points.WithLabelValues(opQuery).Add(float64(returned))
	c.decodeQ.Observe(float64(decoded))
}

// RecordDecode implements pointstore.MetricsCollector.
func (c *Collector) RecordDecode(points int, bytes int64, d time.Duration, err error) {
	c.ops.WithLabelValues(opDecode, status(err)).Inc()
	c.latency.WithLabelValues(opDecode).Observe(d.Seconds())
	c.points.WithLabelValues(opDecode).Add(float64(points))
	c.bytes.WithLabelValues(opDecode).Add(float64(bytes))
}
