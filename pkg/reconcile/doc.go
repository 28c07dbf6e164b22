// Package reconcile implements the role-to-permission reconciliation engine.
//
// A run takes a user's live chat-platform roles, resolves them through the
// admin-authored mapping table into a desired permission set, diffs that
// against the permission set the previous run confirmed as applied, and
// applies the resulting deltas to the file-storage and voice-server platforms
// concurrently. Failed actions are kept out of the persisted applied set so
// the next run retries exactly those deltas; repeated runs converge without a
// retry queue.
package reconcile
