// Package discord is the chat-platform adapter. It reads role state from
// the Discord REST API: the per-guild role catalog (cached) and a member's
// live role set (never cached). Without a bot token the adapter runs in
// simulated mode and serves a small fixed catalog so the reconciliation flow
// stays exercisable.
package discord
