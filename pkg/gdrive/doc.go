// Package gdrive is the file-storage adapter. It grants and revokes access
// levels on Drive items for a user's linked email identity, and serves the
// item catalog through the TTL cache. Without a service-account key file the
// adapter runs in simulated mode.
package gdrive
