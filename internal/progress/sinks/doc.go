// Package sinks implements progress consumers: structured logs and
// Prometheus collectors with an optional node-exporter textfile export.
package sinks
