package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Nu11ified/sync-server/pkg/reconcile"
)

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	internal_user_id TEXT PRIMARY KEY,
	chat_user_id     TEXT NOT NULL UNIQUE,
	storage_identity TEXT NOT NULL DEFAULT '',
	voice_unique_id  TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS role_mappings (
	mapping_id     TEXT PRIMARY KEY,
	role_id        TEXT NOT NULL,
	community_id   TEXT NOT NULL,
	storage_grants TEXT NOT NULL DEFAULT '[]',
	voice_groups   TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_role_mappings_community ON role_mappings(community_id);

CREATE TABLE IF NOT EXISTS applied_permissions (
	internal_user_id TEXT NOT NULL,
	community_id     TEXT NOT NULL,
	payload          TEXT NOT NULL,
	updated_at       TIMESTAMP NOT NULL,
	PRIMARY KEY (internal_user_id, community_id)
);

CREATE TABLE IF NOT EXISTS role_snapshots (
	internal_user_id TEXT NOT NULL,
	community_id     TEXT NOT NULL,
	role_ids         TEXT NOT NULL,
	updated_at       TIMESTAMP NOT NULL,
	PRIMARY KEY (internal_user_id, community_id)
);
`

// SQLStore is a sqlite-backed identity/mapping store.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (creating if needed) the sqlite database at path and
// ensures the schema exists. Use ":memory:" for an ephemeral store.
func NewSQLStore(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// Writes to a user's record must serialize at the storage layer;
	// sqlite does this with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// GetIdentity implements reconcile.Store.
func (s *SQLStore) GetIdentity(ctx context.Context, chatUserID string) (*reconcile.UserIdentity, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT internal_user_id, chat_user_id, storage_identity, voice_unique_id
		FROM identities WHERE chat_user_id = ?`, chatUserID)

	var identity reconcile.UserIdentity
	err := row.Scan(&identity.InternalUserID, &identity.ChatUserID, &identity.StorageIdentity, &identity.VoiceUniqueID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", reconcile.ErrUnlinkedUser, chatUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query identity: %w", err)
	}
	return &identity, nil
}

// UpsertIdentity creates or updates an identity record.
func (s *SQLStore) UpsertIdentity(ctx context.Context, identity *reconcile.UserIdentity) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (internal_user_id, chat_user_id, storage_identity, voice_unique_id)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(internal_user_id) DO UPDATE SET
			chat_user_id = excluded.chat_user_id,
			storage_identity = excluded.storage_identity,
			voice_unique_id = excluded.voice_unique_id`,
		identity.InternalUserID, identity.ChatUserID, identity.StorageIdentity, identity.VoiceUniqueID)
	if err != nil {
		return fmt.Errorf("failed to upsert identity: %w", err)
	}
	return nil
}

// GetMappings implements reconcile.Store.
func (s *SQLStore) GetMappings(ctx context.Context, communityID string) ([]reconcile.MappingEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mapping_id, role_id, community_id, storage_grants, voice_groups
		FROM role_mappings WHERE community_id = ?`, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mappings: %w", err)
	}
	defer rows.Close()

	var entries []reconcile.MappingEntry
	for rows.Next() {
		var entry reconcile.MappingEntry
		var grants, groups string
		if err := rows.Scan(&entry.MappingID, &entry.RoleID, &entry.CommunityID, &grants, &groups); err != nil {
			return nil, fmt.Errorf("failed to scan mapping row: %w", err)
		}
		if err := json.Unmarshal([]byte(grants), &entry.StorageGrants); err != nil {
			return nil, fmt.Errorf("malformed storage grants for mapping %s: %w", entry.MappingID, err)
		}
		if err := json.Unmarshal([]byte(groups), &entry.VoiceGroups); err != nil {
			return nil, fmt.Errorf("malformed voice groups for mapping %s: %w", entry.MappingID, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// UpsertMapping creates or updates a mapping table row.
func (s *SQLStore) UpsertMapping(ctx context.Context, entry *reconcile.MappingEntry) error {
	grants, err := json.Marshal(entry.StorageGrants)
	if err != nil {
		return fmt.Errorf("failed to encode storage grants: %w", err)
	}
	groups, err := json.Marshal(entry.VoiceGroups)
	if err != nil {
		return fmt.Errorf("failed to encode voice groups: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO role_mappings (mapping_id, role_id, community_id, storage_grants, voice_groups)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(mapping_id) DO UPDATE SET
			role_id = excluded.role_id,
			community_id = excluded.community_id,
			storage_grants = excluded.storage_grants,
			voice_groups = excluded.voice_groups`,
		entry.MappingID, entry.RoleID, entry.CommunityID, string(grants), string(groups))
	if err != nil {
		return fmt.Errorf("failed to upsert mapping: %w", err)
	}
	return nil
}

// GetAppliedSet implements reconcile.Store. An absent record yields an
// empty set, so a user's first run is purely additive.
func (s *SQLStore) GetAppliedSet(ctx context.Context, internalUserID, communityID string) (*reconcile.PermissionSet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT payload FROM applied_permissions
		WHERE internal_user_id = ? AND community_id = ?`, internalUserID, communityID)

	var payload string
	err := row.Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return reconcile.NewPermissionSet(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query applied set: %w", err)
	}

	set := reconcile.NewPermissionSet()
	if err := json.Unmarshal([]byte(payload), set); err != nil {
		return nil, fmt.Errorf("malformed applied set for user %s: %w", internalUserID, err)
	}
	return set, nil
}

// SaveAppliedSet implements reconcile.Store.
func (s *SQLStore) SaveAppliedSet(ctx context.Context, internalUserID, communityID string, set *reconcile.PermissionSet) error {
	payload, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode applied set: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO applied_permissions (internal_user_id, community_id, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(internal_user_id, community_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		internalUserID, communityID, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save applied set: %w", err)
	}
	return nil
}

// GetRoleSnapshot implements reconcile.Store. Returns nil when no snapshot
// has been persisted yet.
func (s *SQLStore) GetRoleSnapshot(ctx context.Context, internalUserID, communityID string) (*reconcile.RoleSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT role_ids, updated_at FROM role_snapshots
		WHERE internal_user_id = ? AND community_id = ?`, internalUserID, communityID)

	var roleIDs string
	snapshot := &reconcile.RoleSnapshot{
		InternalUserID: internalUserID,
		CommunityID:    communityID,
	}
	err := row.Scan(&roleIDs, &snapshot.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query role snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(roleIDs), &snapshot.RoleIDs); err != nil {
		return nil, fmt.Errorf("malformed role snapshot for user %s: %w", internalUserID, err)
	}
	return snapshot, nil
}

// SaveRoleSnapshot implements reconcile.Store.
func (s *SQLStore) SaveRoleSnapshot(ctx context.Context, snapshot *reconcile.RoleSnapshot) error {
	roleIDs, err := json.Marshal(snapshot.RoleIDs)
	if err != nil {
		return fmt.Errorf("failed to encode role snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO role_snapshots (internal_user_id, community_id, role_ids, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(internal_user_id, community_id) DO UPDATE SET
			role_ids = excluded.role_ids,
			updated_at = excluded.updated_at`,
		snapshot.InternalUserID, snapshot.CommunityID, string(roleIDs), snapshot.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save role snapshot: %w", err)
	}
	return nil
}

var _ reconcile.Store = (*SQLStore)(nil)
