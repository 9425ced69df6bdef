// Package metrics provides build and dev-server observability hooks.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	b := incremental.NewBuilder(site, incremental.WithRecorder(metrics.NoopRecorder{}))
//
// PrometheusRecorder registers the same hooks as Prometheus collectors on a
// caller-supplied registry; HTTPHandler exposes that registry for scraping.
package metrics
