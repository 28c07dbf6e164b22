package identity

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Nu11ified/sync-server/pkg/reconcile"
)

// Seed is the YAML shape of a local identity/mapping fixture file. It lets a
// deployment without a remote store define identities and the mapping table
// declaratively.
type Seed struct {
	Identities []SeedIdentity `yaml:"identities"`
	Mappings   []SeedMapping  `yaml:"mappings"`
}

// SeedIdentity is one identity row in a seed file.
type SeedIdentity struct {
	InternalUserID  string `yaml:"internal_user_id"`
	ChatUserID      string `yaml:"chat_user_id"`
	StorageIdentity string `yaml:"storage_identity"`
	VoiceUniqueID   string `yaml:"voice_unique_id"`
}

// SeedMapping is one mapping table row in a seed file.
type SeedMapping struct {
	MappingID     string      `yaml:"mapping_id"`
	RoleID        string      `yaml:"role_id"`
	CommunityID   string      `yaml:"community_id"`
	StorageGrants []SeedGrant `yaml:"storage_grants"`
	VoiceGroups   []string    `yaml:"voice_groups"`
}

// SeedGrant is one storage grant inside a seed mapping.
type SeedGrant struct {
	ItemID      string `yaml:"item_id"`
	AccessLevel string `yaml:"access_level"`
}

// LoadSeedFile parses a YAML seed file.
func LoadSeedFile(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}

	if err := seed.validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	for i, identity := range s.Identities {
		if identity.InternalUserID == "" || identity.ChatUserID == "" {
			return fmt.Errorf("identity %d: internal_user_id and chat_user_id are required", i)
		}
	}
	for i, mapping := range s.Mappings {
		if mapping.MappingID == "" {
			return fmt.Errorf("mapping %d: mapping_id is required", i)
		}
		if mapping.RoleID == "" || mapping.CommunityID == "" {
			return fmt.Errorf("mapping %s: role_id and community_id are required", mapping.MappingID)
		}
		for _, grant := range mapping.StorageGrants {
			if !reconcile.AccessLevel(grant.AccessLevel).Valid() {
				return fmt.Errorf("mapping %s: unknown access level %q", mapping.MappingID, grant.AccessLevel)
			}
		}
	}
	return nil
}

// ImportSeed upserts the seed's identities and mappings into the store.
func (s *SQLStore) ImportSeed(ctx context.Context, seed *Seed) error {
	for _, identity := range seed.Identities {
		err := s.UpsertIdentity(ctx, &reconcile.UserIdentity{
			InternalUserID:  identity.InternalUserID,
			ChatUserID:      identity.ChatUserID,
			StorageIdentity: identity.StorageIdentity,
			VoiceUniqueID:   identity.VoiceUniqueID,
		})
		if err != nil {
			return err
		}
	}

	for _, mapping := range seed.Mappings {
		entry := &reconcile.MappingEntry{
			MappingID:   mapping.MappingID,
			RoleID:      mapping.RoleID,
			CommunityID: mapping.CommunityID,
			VoiceGroups: mapping.VoiceGroups,
		}
		for _, grant := range mapping.StorageGrants {
			entry.StorageGrants = append(entry.StorageGrants, reconcile.StorageGrant{
				ItemID:      grant.ItemID,
				AccessLevel: reconcile.AccessLevel(grant.AccessLevel),
			})
		}
		if err := s.UpsertMapping(ctx, entry); err != nil {
			return err
		}
	}

	return nil
}
