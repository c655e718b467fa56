package timeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gmforge/battlemap/internal/model"
)

// executeRound plays the round's pending actions in ascending order.
//
// The round is claimed under the lock before any playback dispatches, so
// two concurrent executions of the same round cannot both observe its
// actions unexecuted: the loser returns without playing anything.
//
// Playback happens outside the engine lock, so round bookkeeping stays
// responsive while animations run. After each awaited animation the
// captured generation is re-checked: if the user navigated meanwhile, the
// execution stops without committing anything. A failed animation is
// logged and skipped; it never aborts the round.
func (e *Engine) executeRound(ctx context.Context, roundNumber int, gen uint64) error {
	e.mu.Lock()
	if _, busy := e.executing[roundNumber]; busy {
		e.mu.Unlock()
		return nil
	}
	e.executing[roundNumber] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.executing, roundNumber)
		e.mu.Unlock()
	}()

	for {
		e.mu.Lock()
		t := e.active
		if e.generation != gen || t == nil {
			e.mu.Unlock()
			return nil
		}
		r := t.RoundByNumber(roundNumber)
		if r == nil {
			e.mu.Unlock()
			return nil
		}

		var next *model.Action
		for _, a := range r.SortedActions() {
			if !a.Executed {
				next = a
				break
			}
		}
		if next == nil {
			r.Executed = true
			e.mu.Unlock()
			slog.Debug("round executed", "round", roundNumber, "map", t.MapID)
			return nil
		}

		played := next.Clone()
		mapID := t.MapID
		d := e.scaledDurationLocked(played)
		e.mu.Unlock()

		if err := e.animator.Play(ctx, mapID, played, d); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("action animation failed",
				"action", played.ID,
				"type", played.Type,
				"token", played.TokenID,
				"error", err)
		}

		e.mu.Lock()
		t = e.active
		if e.generation != gen || t == nil {
			e.mu.Unlock()
			return nil
		}
		var spellObj *model.MapObject
		if _, live := t.FindAction(played.ID); live != nil {
			live.Executed = true
			if live.Type == model.ActionSpell {
				spellObj = e.spellObjectLocked(live, t.MapID, roundNumber)
			}
		}
		e.mu.Unlock()

		// Spell actions place their effect object as they complete, in
		// order, so an interleaved lifecycle sweep sees a deterministic
		// object set.
		if spellObj != nil {
			if err := e.store.AddObject(spellObj); err != nil {
				slog.Warn("placing spell effect failed",
					"action", played.ID,
					"object", spellObj.ID,
					"error", err)
			}
		}
	}
}

// scaledDurationLocked returns the playback duration for an action,
// scaled by 1/speed. Spell templates override the base cast time.
// Must be called with mu held.
func (e *Engine) scaledDurationLocked(a *model.Action) time.Duration {
	base := e.durations.For(a.Type)
	if a.Type == model.ActionSpell && e.spells != nil {
		if name, ok := a.Data["spell"].(string); ok {
			if tmpl := e.spells.Get(name); tmpl != nil && tmpl.CastMs > 0 {
				base = time.Duration(tmpl.CastMs) * time.Millisecond
			}
		}
	}
	return time.Duration(float64(base) / e.speed)
}

// spellObjectLocked builds the spell-effect object for a completed spell
// action. The effect is stamped with the round it was cast in; its
// duration comes from the catalog (0, never swept, when the spell is
// unknown or instant). Must be called with mu held.
func (e *Engine) spellObjectLocked(a *model.Action, mapID string, round int) *model.MapObject {
	name, _ := a.Data["spell"].(string)

	obj := &model.MapObject{
		ID:            uuid.NewString(),
		MapID:         mapID,
		Kind:          model.ObjectEffect,
		Label:         name,
		X:             numField(a.Data, "x"),
		Y:             numField(a.Data, "y"),
		IsSpellEffect: true,
		RoundCreated:  round,
	}

	if e.spells != nil {
		if tmpl := e.spells.Get(name); tmpl != nil {
			obj.SpellDuration = tmpl.DurationRounds
			obj.Color = tmpl.Color
			obj.Width = tmpl.Radius * 2
			obj.Height = tmpl.Radius * 2
		} else {
			slog.Warn("unknown spell, placing instant effect", "spell", name, "action", a.ID)
		}
	}
	return obj
}

// numField reads a numeric payload field that may arrive as float64
// (JSON) or int (in-process callers).
func numField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
