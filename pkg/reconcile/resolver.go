package reconcile

// Resolve computes the permission set that should hold for a user holding
// the given roles, under the given mapping table. Entries matching a held
// role (by role and community) are merged by union; when two entries grant
// different access levels on the same item, the most permissive level wins.
// The result is independent of role and entry ordering because the merge is
// commutative.
func Resolve(roles []Role, entries []MappingEntry) *PermissionSet {
	desired := NewPermissionSet()

	held := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		held[role.CommunityID+"/"+role.ID] = struct{}{}
	}

	for _, entry := range entries {
		if _, ok := held[entry.CommunityID+"/"+entry.RoleID]; !ok {
			continue
		}

		for _, grant := range entry.StorageGrants {
			if !grant.AccessLevel.Valid() {
				continue
			}
			if current, ok := desired.Storage[grant.ItemID]; ok {
				desired.Storage[grant.ItemID] = MorePermissive(current, grant.AccessLevel)
			} else {
				desired.Storage[grant.ItemID] = grant.AccessLevel
			}
		}

		for _, group := range entry.VoiceGroups {
			if group == "" {
				continue
			}
			desired.Voice[group] = struct{}{}
		}
	}

	return desired
}
