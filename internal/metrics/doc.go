// Package metrics records task and stage metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics can
// be enabled without nil checks at call sites. PrometheusRecorder registers
// its collectors on a private registry. A single-shot CLI run has no scrape
// endpoint, so the registry is exported once at exit, either to a
// node_exporter textfile or to a Pushgateway.
package metrics
