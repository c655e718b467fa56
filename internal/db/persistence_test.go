package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmforge/battlemap/internal/model"
)

func testSnapshot() Snapshot {
	return Snapshot{
		Objects: map[string][]*model.MapObject{
			"m1": {
				{
					ID: "tok1", MapID: "m1", Kind: model.ObjectToken,
					Label: "Goblin", X: 10, Y: 20, Width: 1, Height: 1,
				},
				{
					ID: "web1", MapID: "m1", Kind: model.ObjectEffect,
					Label: "Web", Color: "#cccccc",
					IsSpellEffect: true, RoundCreated: 2, SpellDuration: 3,
				},
			},
			"m2": {
				{ID: "tok2", MapID: "m2", Kind: model.ObjectToken, Label: "Ogre"},
			},
		},
		Tombstones: []string{"dead1", "dead2"},
		Timelines: []*model.Timeline{
			{
				ID: "tl1", MapID: "m1", CurrentRound: 2, IsActive: true,
				Rounds: []*model.Round{
					{
						ID: "r1", Number: 1, Timestamp: time.Now().UTC(),
						Executed: true, NextOrder: 2,
						Actions: []*model.Action{
							{
								ID: "a1", TokenID: "tok1", Type: model.ActionMove,
								Data:     map[string]any{"to_x": 15.0, "to_y": 25.0},
								Executed: true, Order: 0, RoundNumber: 1,
							},
							{
								ID: "a2", TokenID: "tok1", Type: model.ActionSpell,
								Data:     map[string]any{"spell": "Web"},
								Executed: true, Order: 1, RoundNumber: 1,
							},
						},
					},
					{ID: "r2", Number: 2, Timestamp: time.Now().UTC()},
				},
				History: []*model.Round{
					{ID: "h1", Number: 1, Timestamp: time.Now().UTC(), Executed: true},
				},
			},
		},
	}
}

func TestSaveLoadSnapshot_RoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	svc := NewPersistenceService(pool)
	ctx := context.Background()

	require.NoError(t, svc.SaveSnapshot(ctx, testSnapshot()))

	loaded, err := svc.LoadSnapshot(ctx)
	require.NoError(t, err)

	require.Len(t, loaded.Objects, 2)
	require.Len(t, loaded.Objects["m1"], 2)
	require.Len(t, loaded.Objects["m2"], 1)

	var web *model.MapObject
	for _, obj := range loaded.Objects["m1"] {
		if obj.ID == "web1" {
			web = obj
		}
	}
	require.NotNil(t, web)
	assert.Equal(t, model.ObjectEffect, web.Kind)
	assert.True(t, web.IsSpellEffect)
	assert.Equal(t, 2, web.RoundCreated)
	assert.Equal(t, 3, web.SpellDuration)

	assert.ElementsMatch(t, []string{"dead1", "dead2"}, loaded.Tombstones)

	require.Len(t, loaded.Timelines, 1)
	tl := loaded.Timelines[0]
	assert.Equal(t, "tl1", tl.ID)
	assert.Equal(t, "m1", tl.MapID)
	assert.Equal(t, 2, tl.CurrentRound)
	assert.True(t, tl.IsActive)

	require.Len(t, tl.Rounds, 2)
	require.Len(t, tl.History, 1)
	r1 := tl.Rounds[0]
	assert.Equal(t, 1, r1.Number)
	assert.True(t, r1.Executed)
	assert.Equal(t, 2, r1.NextOrder)

	require.Len(t, r1.Actions, 2)
	assert.Equal(t, "a1", r1.Actions[0].ID, "actions load in order")
	assert.Equal(t, "a2", r1.Actions[1].ID)
	assert.Equal(t, model.ActionSpell, r1.Actions[1].Type)
	assert.Equal(t, "Web", r1.Actions[1].Data["spell"])
	assert.Equal(t, 15.0, r1.Actions[0].Data["to_x"])
}

func TestSaveSnapshot_SecondSaveReplacesState(t *testing.T) {
	pool := setupTestDB(t)
	svc := NewPersistenceService(pool)
	ctx := context.Background()

	require.NoError(t, svc.SaveSnapshot(ctx, testSnapshot()))

	// Second save: one object dropped and deleted, timeline advanced.
	snap := testSnapshot()
	snap.Objects["m1"] = snap.Objects["m1"][:1]
	snap.Tombstones = append(snap.Tombstones, "web1")
	snap.Timelines[0].CurrentRound = 5
	require.NoError(t, svc.SaveSnapshot(ctx, snap))

	loaded, err := svc.LoadSnapshot(ctx)
	require.NoError(t, err)

	assert.Len(t, loaded.Objects["m1"], 1)
	assert.ElementsMatch(t, []string{"dead1", "dead2", "web1"}, loaded.Tombstones,
		"tombstones accumulate across saves")
	require.Len(t, loaded.Timelines, 1)
	assert.Equal(t, 5, loaded.Timelines[0].CurrentRound)
}

func TestLoadSnapshot_EmptyDatabase(t *testing.T) {
	pool := setupTestDB(t)
	svc := NewPersistenceService(pool)

	loaded, err := svc.LoadSnapshot(context.Background())
	require.NoError(t, err)

	assert.Empty(t, loaded.Objects)
	assert.Empty(t, loaded.Tombstones)
	assert.Empty(t, loaded.Timelines)
}

func TestObjectRepository_LoadByMap(t *testing.T) {
	pool := setupTestDB(t)
	svc := NewPersistenceService(pool)
	ctx := context.Background()

	require.NoError(t, svc.SaveSnapshot(ctx, testSnapshot()))

	repo := NewObjectRepository(pool)
	objects, err := repo.LoadByMap(ctx, "m1")
	require.NoError(t, err)
	assert.Len(t, objects, 2)

	objects, err = repo.LoadByMap(ctx, "nowhere")
	require.NoError(t, err)
	assert.Empty(t, objects)
}
