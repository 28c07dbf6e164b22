// Package teamspeak is the voice-server adapter. It speaks the ServerQuery
// text protocol over TCP to add and remove clients from server groups and to
// list the group catalog. Each operation uses a fresh query session, keeping
// the adapter stateless. Without query credentials the adapter runs in
// simulated mode.
package teamspeak
