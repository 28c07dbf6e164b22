package reconcile

import (
	"context"
	"errors"
)

// Run-level errors surfaced to callers. Fatal pre-condition failures abort
// the run with no partial side effects.
var (
	// ErrUnlinkedUser means the chat user has no internal identity.
	ErrUnlinkedUser = errors.New("chat user is not linked to an internal identity")
	// ErrSourceUnavailable means current roles could not be fetched from
	// the chat platform.
	ErrSourceUnavailable = errors.New("chat platform unavailable")
	// ErrMappingUnavailable means the mapping table could not be loaded.
	ErrMappingUnavailable = errors.New("role mapping table unavailable")
)

// ChatPlatform supplies live role membership for a user. GetUserRoles must
// reflect live state; it is never served from a cache.
type ChatPlatform interface {
	GetUserRoles(ctx context.Context, communityID, chatUserID string) ([]Role, error)
	Simulated() bool
}

// StoragePlatform grants and revokes access levels on storage items for an
// external identity.
type StoragePlatform interface {
	SetPermission(ctx context.Context, identity, itemID string, level AccessLevel) error
	RevokePermission(ctx context.Context, identity, itemID string) error
	Simulated() bool
}

// VoicePlatform adds and removes a client from voice server groups.
type VoicePlatform interface {
	AddToGroup(ctx context.Context, uniqueID, groupID string) error
	RemoveFromGroup(ctx context.Context, uniqueID, groupID string) error
	Simulated() bool
}

// Store is the identity/mapping store collaborator. It supplies the user's
// linked identities, the mapping table, the last-applied permission set and
// the previous role snapshot, and accepts updated state after a run.
type Store interface {
	// GetIdentity returns ErrUnlinkedUser when the chat user has no
	// internal identity.
	GetIdentity(ctx context.Context, chatUserID string) (*UserIdentity, error)
	GetMappings(ctx context.Context, communityID string) ([]MappingEntry, error)

	// GetAppliedSet returns an empty set when no previous run persisted
	// one for the user and community.
	GetAppliedSet(ctx context.Context, internalUserID, communityID string) (*PermissionSet, error)
	SaveAppliedSet(ctx context.Context, internalUserID, communityID string, set *PermissionSet) error

	GetRoleSnapshot(ctx context.Context, internalUserID, communityID string) (*RoleSnapshot, error)
	SaveRoleSnapshot(ctx context.Context, snapshot *RoleSnapshot) error
}
