// Package httputil provides HTTP handler utilities for consistent error
// handling, JSON encoding, and request middleware.
package httputil
