// Package identity implements the identity/mapping store: the authoritative
// source for chat-to-external identity links, the role-to-permission mapping
// table, the last-applied permission set and the previous role snapshot.
//
// Two implementations are provided. SQLStore keeps everything in a local
// sqlite database and can seed identities and mappings from a YAML file,
// reloading it on change. HTTPStore delegates to a remote store over its
// internal JSON API.
package identity
