package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gmforge/battlemap/internal/model"
)

// TimelineRepository manages combat timelines with their rounds and
// actions. Saving rewrites the whole timeline: rounds and actions are
// small, and a full rewrite keeps the sorted/history ordering trivially
// consistent with the in-memory state.
type TimelineRepository struct {
	db *pgxpool.Pool
}

// NewTimelineRepository creates a new TimelineRepository.
func NewTimelineRepository(db *pgxpool.Pool) *TimelineRepository {
	return &TimelineRepository{db: db}
}

// SaveTx persists a timeline snapshot within tx.
func (r *TimelineRepository) SaveTx(ctx context.Context, tx pgx.Tx, t *model.Timeline) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO timelines (id, map_id, current_round, is_active)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET current_round = EXCLUDED.current_round, is_active = EXCLUDED.is_active`,
		t.ID, t.MapID, t.CurrentRound, t.IsActive,
	)
	if err != nil {
		return fmt.Errorf("upserting timeline %s: %w", t.ID, err)
	}

	// Rounds cascade-delete their actions.
	if _, err := tx.Exec(ctx, `DELETE FROM rounds WHERE timeline_id = $1`, t.ID); err != nil {
		return fmt.Errorf("clearing rounds for timeline %s: %w", t.ID, err)
	}

	if err := r.insertRoundsTx(ctx, tx, t.ID, t.Rounds, false); err != nil {
		return err
	}
	return r.insertRoundsTx(ctx, tx, t.ID, t.History, true)
}

func (r *TimelineRepository) insertRoundsTx(ctx context.Context, tx pgx.Tx, timelineID string, rounds []*model.Round, inHistory bool) error {
	for pos, round := range rounds {
		_, err := tx.Exec(ctx,
			`INSERT INTO rounds (id, timeline_id, number, ts, executed, next_order, in_history, pos)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			round.ID, timelineID, round.Number, round.Timestamp,
			round.Executed, round.NextOrder, inHistory, pos,
		)
		if err != nil {
			return fmt.Errorf("inserting round %s: %w", round.ID, err)
		}

		for _, a := range round.Actions {
			var payload []byte
			if a.Data != nil {
				payload, err = json.Marshal(a.Data)
				if err != nil {
					return fmt.Errorf("encoding action %s payload: %w", a.ID, err)
				}
			}
			_, err = tx.Exec(ctx,
				`INSERT INTO actions (id, round_id, token_id, type, data, executed, ord, round_number)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				a.ID, round.ID, a.TokenID, string(a.Type), payload, a.Executed, a.Order, a.RoundNumber,
			)
			if err != nil {
				return fmt.Errorf("inserting action %s: %w", a.ID, err)
			}
		}
	}
	return nil
}

// LoadAll loads every persisted timeline.
func (r *TimelineRepository) LoadAll(ctx context.Context) ([]*model.Timeline, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, map_id, current_round, is_active FROM timelines`)
	if err != nil {
		return nil, fmt.Errorf("querying timelines: %w", err)
	}
	defer rows.Close()

	timelines := make([]*model.Timeline, 0, 4)
	for rows.Next() {
		var t model.Timeline
		if err := rows.Scan(&t.ID, &t.MapID, &t.CurrentRound, &t.IsActive); err != nil {
			return nil, fmt.Errorf("scanning timeline row: %w", err)
		}
		timelines = append(timelines, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating timeline rows: %w", err)
	}

	for _, t := range timelines {
		if err := r.loadRounds(ctx, t); err != nil {
			return nil, err
		}
	}
	return timelines, nil
}

func (r *TimelineRepository) loadRounds(ctx context.Context, t *model.Timeline) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, number, ts, executed, next_order, in_history
		 FROM rounds WHERE timeline_id = $1
		 ORDER BY in_history, pos`, t.ID)
	if err != nil {
		return fmt.Errorf("querying rounds for timeline %s: %w", t.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var round model.Round
		var inHistory bool
		err := rows.Scan(&round.ID, &round.Number, &round.Timestamp,
			&round.Executed, &round.NextOrder, &inHistory)
		if err != nil {
			return fmt.Errorf("scanning round row: %w", err)
		}
		if inHistory {
			t.History = append(t.History, &round)
		} else {
			t.Rounds = append(t.Rounds, &round)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating round rows: %w", err)
	}

	for _, round := range append(append([]*model.Round{}, t.Rounds...), t.History...) {
		if err := r.loadActions(ctx, round); err != nil {
			return err
		}
	}
	return nil
}

func (r *TimelineRepository) loadActions(ctx context.Context, round *model.Round) error {
	rows, err := r.db.Query(ctx,
		`SELECT id, token_id, type, data, executed, ord, round_number
		 FROM actions WHERE round_id = $1 ORDER BY ord`, round.ID)
	if err != nil {
		return fmt.Errorf("querying actions for round %s: %w", round.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var a model.Action
		var typ string
		var payload []byte
		err := rows.Scan(&a.ID, &a.TokenID, &typ, &payload, &a.Executed, &a.Order, &a.RoundNumber)
		if err != nil {
			return fmt.Errorf("scanning action row: %w", err)
		}
		a.Type = model.ActionType(typ)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &a.Data); err != nil {
				return fmt.Errorf("decoding action %s payload: %w", a.ID, err)
			}
		}
		round.Actions = append(round.Actions, &a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating action rows: %w", err)
	}
	return nil
}
