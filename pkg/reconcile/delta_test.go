package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffFirstRunIsPurelyAdditive(t *testing.T) {
	desired := NewPermissionSet()
	desired.Storage["x"] = AccessReader
	desired.Voice["g"] = struct{}{}

	delta := Diff(desired, NewPermissionSet())

	assert.Equal(t, map[string]AccessLevel{"x": AccessReader}, delta.StorageSet)
	assert.Empty(t, delta.StorageRevoke)
	assert.Equal(t, []string{"g"}, delta.VoiceAdd)
	assert.Empty(t, delta.VoiceRemove)
}

func TestDiffNoChangesYieldsEmptyDelta(t *testing.T) {
	desired := NewPermissionSet()
	desired.Storage["x"] = AccessWriter
	desired.Voice["g"] = struct{}{}

	delta := Diff(desired, desired.Clone())
	assert.True(t, delta.Empty())
}

func TestDiffLevelChangeIsSingleSetAction(t *testing.T) {
	applied := NewPermissionSet()
	applied.Storage["x"] = AccessReader

	desired := NewPermissionSet()
	desired.Storage["x"] = AccessWriter

	delta := Diff(desired, applied)

	assert.Equal(t, map[string]AccessLevel{"x": AccessWriter}, delta.StorageSet)
	assert.Empty(t, delta.StorageRevoke, "a level change must not produce a revoke")
}

func TestDiffRemovals(t *testing.T) {
	applied := NewPermissionSet()
	applied.Storage["x"] = AccessReader
	applied.Storage["y"] = AccessWriter
	applied.Voice["g"] = struct{}{}
	applied.Voice["h"] = struct{}{}

	desired := NewPermissionSet()
	desired.Storage["y"] = AccessWriter
	desired.Voice["h"] = struct{}{}

	delta := Diff(desired, applied)

	assert.Empty(t, delta.StorageSet)
	assert.Equal(t, []string{"x"}, delta.StorageRevoke)
	assert.Empty(t, delta.VoiceAdd)
	assert.Equal(t, []string{"g"}, delta.VoiceRemove)
}
