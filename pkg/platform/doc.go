// Package platform holds the plumbing shared by the three platform adapters:
// the error taxonomy that drives retry decisions, the per-action outcome
// model, and a JSON HTTP client with a single fixed-backoff retry for
// transient failures.
package platform
