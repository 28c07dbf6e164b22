package reconcile

// Delta is the set of actions needed to move a platform from the applied
// state to the desired state.
type Delta struct {
	// StorageSet holds items whose permission must be set, including level
	// changes: upgrading reader to writer is one set action, never a
	// revoke-and-grant pair.
	StorageSet map[string]AccessLevel
	// StorageRevoke holds items whose permission must be revoked.
	StorageRevoke []string
	// VoiceAdd and VoiceRemove hold group memberships to add and remove.
	VoiceAdd    []string
	VoiceRemove []string
}

// Empty reports whether the delta requires no actions.
func (d *Delta) Empty() bool {
	return len(d.StorageSet) == 0 && len(d.StorageRevoke) == 0 &&
		len(d.VoiceAdd) == 0 && len(d.VoiceRemove) == 0
}

// Diff computes the actions separating desired from applied as plain set
// difference per platform. With an empty applied set the result is purely
// additive, so a first run grants everything and revokes nothing.
func Diff(desired, applied *PermissionSet) *Delta {
	d := &Delta{StorageSet: make(map[string]AccessLevel)}

	for item, level := range desired.Storage {
		if current, ok := applied.Storage[item]; !ok || current != level {
			d.StorageSet[item] = level
		}
	}
	for item := range applied.Storage {
		if _, ok := desired.Storage[item]; !ok {
			d.StorageRevoke = append(d.StorageRevoke, item)
		}
	}

	for group := range desired.Voice {
		if _, ok := applied.Voice[group]; !ok {
			d.VoiceAdd = append(d.VoiceAdd, group)
		}
	}
	for group := range applied.Voice {
		if _, ok := desired.Voice[group]; !ok {
			d.VoiceRemove = append(d.VoiceRemove, group)
		}
	}

	return d
}
