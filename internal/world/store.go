package world

import (
	"fmt"
	"sync"

	"github.com/gmforge/battlemap/internal/model"
)

// MapStore owns the authoritative list of placed objects across maps.
// Everything else (timeline engine, effect sweep, session server) mutates
// the object list only through AddObject/DeleteObject, so all mutation is
// serialized here.
//
// Deletion is final: a deleted object id is tombstoned and can never be
// re-added. This is what keeps expired spell effects from resurrecting
// when the timeline navigates back to an earlier round.
//
// Thread-safe: all methods are protected by sync.RWMutex.
type MapStore struct {
	mu         sync.RWMutex
	objects    map[string]*model.MapObject // id → object
	tombstones map[string]struct{}         // ids removed permanently
}

// NewMapStore creates an empty store.
func NewMapStore() *MapStore {
	return &MapStore{
		objects:    make(map[string]*model.MapObject),
		tombstones: make(map[string]struct{}),
	}
}

// AddObject inserts a placed object. The store takes ownership of obj.
// Re-adding a tombstoned id is refused.
func (s *MapStore) AddObject(obj *model.MapObject) error {
	if obj == nil || obj.ID == "" {
		return fmt.Errorf("adding object: missing id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dead := s.tombstones[obj.ID]; dead {
		return fmt.Errorf("adding object %s: id was deleted permanently", obj.ID)
	}
	if _, ok := s.objects[obj.ID]; ok {
		return fmt.Errorf("adding object %s: id already present", obj.ID)
	}
	s.objects[obj.ID] = obj
	return nil
}

// DeleteObject removes an object by id and tombstones the id.
// Idempotent: deleting an absent id only records the tombstone.
func (s *MapStore) DeleteObject(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, id)
	s.tombstones[id] = struct{}{}
}

// Object returns a copy of the object with the given id, or nil.
func (s *MapStore) Object(id string) *model.MapObject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if obj, ok := s.objects[id]; ok {
		return obj.Clone()
	}
	return nil
}

// Objects returns a snapshot of all objects on the given map.
func (s *MapStore) Objects(mapID string) []*model.MapObject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.MapObject, 0, len(s.objects))
	for _, obj := range s.objects {
		if obj.MapID == mapID {
			out = append(out, obj.Clone())
		}
	}
	return out
}

// AllByMap returns a snapshot of every object, grouped by map id.
// Used by persistence to save the full state.
func (s *MapStore) AllByMap() map[string][]*model.MapObject {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]*model.MapObject)
	for _, obj := range s.objects {
		out[obj.MapID] = append(out[obj.MapID], obj.Clone())
	}
	return out
}

// Count returns the number of objects on the given map.
func (s *MapStore) Count(mapID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, obj := range s.objects {
		if obj.MapID == mapID {
			n++
		}
	}
	return n
}

// Deleted reports whether the id has been deleted permanently.
func (s *MapStore) Deleted(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, dead := s.tombstones[id]
	return dead
}

// Tombstones returns a snapshot of all permanently deleted ids.
// Used by persistence to save the tombstone set alongside objects.
func (s *MapStore) Tombstones() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.tombstones))
	for id := range s.tombstones {
		out = append(out, id)
	}
	return out
}

// RestoreTombstone re-registers a tombstoned id without touching objects.
// Used when loading persisted state.
func (s *MapStore) RestoreTombstone(id string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tombstones[id] = struct{}{}
}
