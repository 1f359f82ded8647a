// Package observability exposes Prometheus collectors for the companion core.
//
// Metrics are registered on a caller-supplied registry so tests can use a fresh
// prometheus.NewRegistry() and the server can mount it on /metrics.
package observability
