// Package cache implements a generic TTL-bounded read-through cache used by
// the platform adapters for catalog listings.
//
// Concurrent callers for the same key share a single in-flight fetch, so a
// burst of catalog requests issues at most one upstream call. A failed fetch
// never updates the cache and is never papered over with a stale entry; the
// error is returned to every waiting caller.
package cache
