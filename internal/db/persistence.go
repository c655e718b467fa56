package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gmforge/battlemap/internal/model"
)

// Snapshot is everything the server persists: placed objects grouped by
// map, the global tombstone set, and every retained timeline.
type Snapshot struct {
	Objects    map[string][]*model.MapObject
	Tombstones []string
	Timelines  []*model.Timeline
}

// PersistenceService saves and restores the full battlemap state.
// Saves run in a single transaction: either the whole snapshot lands or
// none of it does.
type PersistenceService struct {
	pool         *pgxpool.Pool
	objectRepo   *ObjectRepository
	timelineRepo *TimelineRepository
}

// NewPersistenceService creates a new service.
func NewPersistenceService(pool *pgxpool.Pool) *PersistenceService {
	return &PersistenceService{
		pool:         pool,
		objectRepo:   NewObjectRepository(pool),
		timelineRepo: NewTimelineRepository(pool),
	}
}

// SaveSnapshot persists the snapshot transactionally.
func (s *PersistenceService) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			slog.Error("snapshot rollback failed", "error", err)
		}
	}()

	for mapID, objects := range snap.Objects {
		if err := s.objectRepo.SaveMapTx(ctx, tx, mapID, objects); err != nil {
			return fmt.Errorf("saving objects for map %s: %w", mapID, err)
		}
	}
	if err := s.objectRepo.SaveTombstonesTx(ctx, tx, snap.Tombstones); err != nil {
		return fmt.Errorf("saving tombstones: %w", err)
	}
	for _, t := range snap.Timelines {
		if err := s.timelineRepo.SaveTx(ctx, tx, t); err != nil {
			return fmt.Errorf("saving timeline for map %s: %w", t.MapID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot transaction: %w", err)
	}

	slog.Debug("state saved",
		"maps", len(snap.Objects),
		"tombstones", len(snap.Tombstones),
		"timelines", len(snap.Timelines))
	return nil
}

// LoadSnapshot restores the persisted state.
func (s *PersistenceService) LoadSnapshot(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{Objects: make(map[string][]*model.MapObject)}

	objects, err := s.objectRepo.LoadAll(ctx)
	if err != nil {
		return snap, fmt.Errorf("loading objects: %w", err)
	}
	for _, obj := range objects {
		snap.Objects[obj.MapID] = append(snap.Objects[obj.MapID], obj)
	}

	if snap.Tombstones, err = s.objectRepo.LoadTombstones(ctx); err != nil {
		return snap, fmt.Errorf("loading tombstones: %w", err)
	}
	if snap.Timelines, err = s.timelineRepo.LoadAll(ctx); err != nil {
		return snap, fmt.Errorf("loading timelines: %w", err)
	}
	return snap, nil
}

// Autosave periodically saves the snapshot produced by collect until ctx
// is cancelled, then performs one final save.
func (s *PersistenceService) Autosave(ctx context.Context, interval time.Duration, collect func() Snapshot) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final save on shutdown; use a fresh context since ctx is gone.
			saveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.SaveSnapshot(saveCtx, collect()); err != nil {
				slog.Error("final autosave failed", "error", err)
			}
			return nil
		case <-ticker.C:
			if err := s.SaveSnapshot(ctx, collect()); err != nil {
				slog.Warn("autosave failed", "error", err)
			}
		}
	}
}
