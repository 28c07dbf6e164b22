// Package config loads the sync server configuration from environment
// variables. Missing credentials for a platform are not an error: they put
// only that platform's adapter into simulated mode.
package config
