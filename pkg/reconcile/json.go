package reconcile

import "encoding/json"

// permissionSetWire is the JSON shape of a PermissionSet: storage grants as
// an item-to-level object, voice groups as a sorted array.
type permissionSetWire struct {
	Storage map[string]AccessLevel `json:"storage"`
	Voice   []string               `json:"voice"`
}

// MarshalJSON implements json.Marshaler.
func (p *PermissionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(permissionSetWire{
		Storage: p.Storage,
		Voice:   p.VoiceGroups(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *PermissionSet) UnmarshalJSON(data []byte) error {
	var wire permissionSetWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	p.Storage = wire.Storage
	if p.Storage == nil {
		p.Storage = make(map[string]AccessLevel)
	}
	p.Voice = make(map[string]struct{}, len(wire.Voice))
	for _, group := range wire.Voice {
		p.Voice[group] = struct{}{}
	}
	return nil
}
