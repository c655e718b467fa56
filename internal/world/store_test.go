package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmforge/battlemap/internal/model"
)

func testObject(id, mapID string) *model.MapObject {
	return &model.MapObject{ID: id, MapID: mapID, Kind: model.ObjectToken}
}

func TestAddObject_RejectsMissingID(t *testing.T) {
	s := NewMapStore()
	assert.Error(t, s.AddObject(nil))
	assert.Error(t, s.AddObject(&model.MapObject{MapID: "m1"}))
}

func TestAddObject_RejectsDuplicate(t *testing.T) {
	s := NewMapStore()
	require.NoError(t, s.AddObject(testObject("a", "m1")))
	assert.Error(t, s.AddObject(testObject("a", "m1")))
}

func TestDeleteObject_Idempotent(t *testing.T) {
	s := NewMapStore()
	require.NoError(t, s.AddObject(testObject("a", "m1")))

	s.DeleteObject("a")
	s.DeleteObject("a") // no panic, still deleted
	assert.Nil(t, s.Object("a"))
	assert.True(t, s.Deleted("a"))
}

func TestDeleteObject_TombstoneBlocksReAdd(t *testing.T) {
	s := NewMapStore()
	require.NoError(t, s.AddObject(testObject("a", "m1")))
	s.DeleteObject("a")

	err := s.AddObject(testObject("a", "m1"))
	require.Error(t, err)
	assert.Nil(t, s.Object("a"))
}

func TestObjects_SnapshotPerMap(t *testing.T) {
	s := NewMapStore()
	require.NoError(t, s.AddObject(testObject("a", "m1")))
	require.NoError(t, s.AddObject(testObject("b", "m1")))
	require.NoError(t, s.AddObject(testObject("c", "m2")))

	assert.Len(t, s.Objects("m1"), 2)
	assert.Len(t, s.Objects("m2"), 1)
	assert.Equal(t, 2, s.Count("m1"))

	// Snapshot copies: mutating a returned object must not leak back.
	snap := s.Objects("m1")
	snap[0].Label = "mutated"
	for _, obj := range s.Objects("m1") {
		assert.Empty(t, obj.Label)
	}
}

func TestTombstones_RoundTrip(t *testing.T) {
	s := NewMapStore()
	s.DeleteObject("x")
	s.DeleteObject("y")

	ids := s.Tombstones()
	assert.ElementsMatch(t, []string{"x", "y"}, ids)

	restored := NewMapStore()
	for _, id := range ids {
		restored.RestoreTombstone(id)
	}
	assert.True(t, restored.Deleted("x"))
	assert.Error(t, restored.AddObject(testObject("x", "m1")))
}

func TestAllByMap(t *testing.T) {
	s := NewMapStore()
	require.NoError(t, s.AddObject(testObject("a", "m1")))
	require.NoError(t, s.AddObject(testObject("b", "m2")))

	byMap := s.AllByMap()
	assert.Len(t, byMap, 2)
	assert.Len(t, byMap["m1"], 1)
	assert.Len(t, byMap["m2"], 1)
}
