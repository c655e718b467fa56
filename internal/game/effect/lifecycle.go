// Package effect implements the spell-effect lifecycle rules: the pure
// expiry predicate and the sweep pass that enforces it against the object
// store on round transitions.
package effect

import (
	"log/slog"

	"github.com/gmforge/battlemap/internal/model"
)

// Store is the subset of the object store the sweep needs.
type Store interface {
	Objects(mapID string) []*model.MapObject
	DeleteObject(id string)
}

// ExpiryRound returns the first round at which the effect must no longer
// exist. ok is false for objects the sweep never touches: non-effects,
// instant effects (SpellDuration 0), and effects missing a creation round.
// Ambiguity always resolves to keep, never to delete.
func ExpiryRound(obj *model.MapObject) (round int, ok bool) {
	if obj == nil || !obj.IsSpellEffect {
		return 0, false
	}
	if obj.RoundCreated < 1 || obj.SpellDuration <= 0 {
		return 0, false
	}
	return obj.RoundCreated + obj.SpellDuration, true
}

// Expired reports whether the effect has expired at the given round.
func Expired(obj *model.MapObject, round int) bool {
	expiry, ok := ExpiryRound(obj)
	return ok && round >= expiry
}

// Sweep deletes every expired spell effect on the map at the given round.
// Deletions go through the store, which tombstones the ids, so repeating
// the sweep at the same round is a no-op: removed objects are simply
// absent from the next snapshot. Returns the number of deletions.
func Sweep(store Store, mapID string, round int) int {
	removed := 0
	for _, obj := range store.Objects(mapID) {
		if !Expired(obj, round) {
			continue
		}
		store.DeleteObject(obj.ID)
		removed++

		slog.Debug("spell effect expired",
			"object", obj.ID,
			"label", obj.Label,
			"map", mapID,
			"round", round,
			"created", obj.RoundCreated,
			"duration", obj.SpellDuration)
	}
	return removed
}
