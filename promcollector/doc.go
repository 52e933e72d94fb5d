// Package promcollector exports pointstore metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc, err := promcollector.New(reg, "pointstore")
//	cloud, err := pointstore.Open(ctx, store, "a.pcx", pointstore.WithMetricsCollector(mc))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package promcollector
