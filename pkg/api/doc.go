// Package api provides the HTTP REST API server for the sync engine.
//
// # Overview
//
// The server exposes the reconciliation trigger, read-only catalog views of
// the three platforms, and operational endpoints. It is built on gorilla/mux
// with request-ID, logging and panic-recovery middleware applied to every
// route.
//
// # API Endpoints
//
//	POST   /api/v1/sync     - Run a reconciliation for one user in a community
//	GET    /api/v1/roles    - Role catalog for a community (?community_id=...)
//	GET    /api/v1/groups   - Voice server-group catalog
//	GET    /api/v1/items    - Storage item catalog
//	GET    /health          - Liveness plus per-adapter mode (live|simulated)
//	GET    /metrics         - Prometheus metrics
//
// A sync run returns 200 with the run result for both success and partial
// status; action failures are reported inside the result, not as an HTTP
// error. Aborted runs map to 404 (unlinked user), 502 (chat platform or
// mapping table unavailable) or 500.
//
// Catalog responses carry a "cached" flag reporting whether the catalog was
// served from the TTL cache or fetched live.
//
// # Usage Example
//
//	server := api.NewServer(orchestrator, discordClient, driveClient, tsClient, logger, metrics)
//	http.ListenAndServe(":8080", server)
package api
