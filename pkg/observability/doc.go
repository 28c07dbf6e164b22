// Package observability provides structured logging and Prometheus metrics
// for the sync server. The logger is a thin wrapper around stdlib slog with
// JSON output and context propagation for request and run identifiers.
package observability
