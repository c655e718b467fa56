package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gmforge/battlemap/internal/model"
)

// ObjectRepository manages placed map objects and the tombstone set.
type ObjectRepository struct {
	db *pgxpool.Pool
}

// NewObjectRepository creates a new ObjectRepository.
func NewObjectRepository(db *pgxpool.Pool) *ObjectRepository {
	return &ObjectRepository{db: db}
}

// SaveMapTx replaces the persisted object set for one map within tx.
func (r *ObjectRepository) SaveMapTx(ctx context.Context, tx pgx.Tx, mapID string, objects []*model.MapObject) error {
	if _, err := tx.Exec(ctx, `DELETE FROM map_objects WHERE map_id = $1`, mapID); err != nil {
		return fmt.Errorf("clearing objects for map %s: %w", mapID, err)
	}

	for _, obj := range objects {
		_, err := tx.Exec(ctx,
			`INSERT INTO map_objects
			 (id, map_id, kind, label, x, y, width, height, rotation, color,
			  is_spell_effect, round_created, spell_duration)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			obj.ID, obj.MapID, string(obj.Kind), obj.Label,
			obj.X, obj.Y, obj.Width, obj.Height, obj.Rotation, obj.Color,
			obj.IsSpellEffect, obj.RoundCreated, obj.SpellDuration,
		)
		if err != nil {
			return fmt.Errorf("inserting object %s: %w", obj.ID, err)
		}
	}
	return nil
}

// LoadByMap loads all objects placed on the given map.
func (r *ObjectRepository) LoadByMap(ctx context.Context, mapID string) ([]*model.MapObject, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, map_id, kind, label, x, y, width, height, rotation, color,
		        is_spell_effect, round_created, spell_duration
		 FROM map_objects WHERE map_id = $1 ORDER BY id`, mapID)
	if err != nil {
		return nil, fmt.Errorf("querying objects for map %s: %w", mapID, err)
	}
	defer rows.Close()

	objects := make([]*model.MapObject, 0, 64)
	for rows.Next() {
		var obj model.MapObject
		var kind string
		err := rows.Scan(
			&obj.ID, &obj.MapID, &kind, &obj.Label,
			&obj.X, &obj.Y, &obj.Width, &obj.Height, &obj.Rotation, &obj.Color,
			&obj.IsSpellEffect, &obj.RoundCreated, &obj.SpellDuration,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning object row: %w", err)
		}
		obj.Kind = model.ObjectKind(kind)
		objects = append(objects, &obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating object rows: %w", err)
	}
	return objects, nil
}

// LoadAll loads every placed object across all maps.
func (r *ObjectRepository) LoadAll(ctx context.Context) ([]*model.MapObject, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, map_id, kind, label, x, y, width, height, rotation, color,
		        is_spell_effect, round_created, spell_duration
		 FROM map_objects ORDER BY map_id, id`)
	if err != nil {
		return nil, fmt.Errorf("querying all objects: %w", err)
	}
	defer rows.Close()

	objects := make([]*model.MapObject, 0, 128)
	for rows.Next() {
		var obj model.MapObject
		var kind string
		err := rows.Scan(
			&obj.ID, &obj.MapID, &kind, &obj.Label,
			&obj.X, &obj.Y, &obj.Width, &obj.Height, &obj.Rotation, &obj.Color,
			&obj.IsSpellEffect, &obj.RoundCreated, &obj.SpellDuration,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning object row: %w", err)
		}
		obj.Kind = model.ObjectKind(kind)
		objects = append(objects, &obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating object rows: %w", err)
	}
	return objects, nil
}

// SaveTombstonesTx persists the tombstone set within tx.
// Tombstones are append-only; existing rows are kept.
func (r *ObjectRepository) SaveTombstonesTx(ctx context.Context, tx pgx.Tx, ids []string) error {
	for _, id := range ids {
		_, err := tx.Exec(ctx,
			`INSERT INTO tombstones (object_id) VALUES ($1)
			 ON CONFLICT (object_id) DO NOTHING`, id)
		if err != nil {
			return fmt.Errorf("inserting tombstone %s: %w", id, err)
		}
	}
	return nil
}

// LoadTombstones loads every permanently deleted object id.
func (r *ObjectRepository) LoadTombstones(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT object_id FROM tombstones`)
	if err != nil {
		return nil, fmt.Errorf("querying tombstones: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 64)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning tombstone row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tombstone rows: %w", err)
	}
	return ids, nil
}
