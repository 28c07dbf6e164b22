package reconcile

import (
	"sort"
	"time"

	"github.com/Nu11ified/sync-server/pkg/platform"
)

// Role is an immutable snapshot of a chat-platform role at fetch time.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	CommunityID string `json:"community_id"`
}

// AccessLevel is a file-storage access level. Levels form a fixed total
// order: writer > commenter > reader.
type AccessLevel string

const (
	AccessReader    AccessLevel = "reader"
	AccessCommenter AccessLevel = "commenter"
	AccessWriter    AccessLevel = "writer"
)

// rank returns the position of the level in the permissiveness order.
// Unknown levels rank lowest so malformed mapping rows can never win a
// conflict.
func (a AccessLevel) rank() int {
	switch a {
	case AccessWriter:
		return 3
	case AccessCommenter:
		return 2
	case AccessReader:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the level is one of the known access levels.
func (a AccessLevel) Valid() bool {
	return a.rank() > 0
}

// MorePermissive returns the more permissive of the two levels.
func MorePermissive(a, b AccessLevel) AccessLevel {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// StorageGrant names an access level on a storage item.
type StorageGrant struct {
	ItemID      string      `json:"item_id"`
	AccessLevel AccessLevel `json:"access_level"`
}

// MappingEntry is one admin-authored row of the role-to-permission mapping
// table. Multiple entries for the same (role, community) pair are tolerated
// and merged by union.
type MappingEntry struct {
	MappingID     string         `json:"mapping_id"`
	RoleID        string         `json:"role_id"`
	CommunityID   string         `json:"community_id"`
	StorageGrants []StorageGrant `json:"storage_grants"`
	VoiceGroups   []string       `json:"voice_groups"`
}

// UserIdentity links a chat-platform user to their external identities.
// An unlinked platform is skipped during reconciliation, never failed.
type UserIdentity struct {
	InternalUserID  string `json:"internal_user_id"`
	ChatUserID      string `json:"chat_user_id"`
	StorageIdentity string `json:"storage_identity,omitempty"`
	VoiceUniqueID   string `json:"voice_unique_id,omitempty"`
}

// StorageLinked reports whether the user has a linked storage identity.
func (u *UserIdentity) StorageLinked() bool {
	return u.StorageIdentity != ""
}

// VoiceLinked reports whether the user has a linked voice identity.
func (u *UserIdentity) VoiceLinked() bool {
	return u.VoiceUniqueID != ""
}

// PermissionSet holds a set of storage grants and voice groups. It is used
// both for the desired set computed from roles and for the applied set
// persisted between runs.
type PermissionSet struct {
	Storage map[string]AccessLevel
	Voice   map[string]struct{}
}

// NewPermissionSet returns an empty permission set.
func NewPermissionSet() *PermissionSet {
	return &PermissionSet{
		Storage: make(map[string]AccessLevel),
		Voice:   make(map[string]struct{}),
	}
}

// Clone returns a deep copy of the set.
func (p *PermissionSet) Clone() *PermissionSet {
	c := NewPermissionSet()
	for item, level := range p.Storage {
		c.Storage[item] = level
	}
	for group := range p.Voice {
		c.Voice[group] = struct{}{}
	}
	return c
}

// Empty reports whether the set contains no grants and no groups.
func (p *PermissionSet) Empty() bool {
	return len(p.Storage) == 0 && len(p.Voice) == 0
}

// VoiceGroups returns the voice group IDs in sorted order.
func (p *PermissionSet) VoiceGroups() []string {
	groups := make([]string, 0, len(p.Voice))
	for group := range p.Voice {
		groups = append(groups, group)
	}
	sort.Strings(groups)
	return groups
}

// RoleSnapshot is the last-known set of role IDs held by a user in a
// community. Bookkeeping only: it never feeds the permission delta.
type RoleSnapshot struct {
	CommunityID    string    `json:"community_id"`
	InternalUserID string    `json:"internal_user_id"`
	RoleIDs        []string  `json:"role_ids"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RunStatus is the aggregate status of a reconciliation run.
type RunStatus string

const (
	// StatusSuccess means every attempted action succeeded.
	StatusSuccess RunStatus = "success"
	// StatusPartial means at least one action failed while siblings
	// completed.
	StatusPartial RunStatus = "partial"
	// StatusAborted means a fatal pre-condition failed and no platform
	// action was attempted.
	StatusAborted RunStatus = "aborted"
)

// Result is the aggregate outcome of a reconciliation run.
type Result struct {
	RunID       string             `json:"run_id"`
	CommunityID string             `json:"community_id"`
	ChatUserID  string             `json:"chat_user_id"`
	Status      RunStatus          `json:"status"`
	Outcomes    []platform.Outcome `json:"outcomes"`
	Error       string             `json:"error,omitempty"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
}
