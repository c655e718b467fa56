// Package timeline implements the combat timeline engine: round
// navigation, action scheduling, and execution of a round's actions
// against the animation collaborator.
package timeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gmforge/battlemap/internal/animation"
	"github.com/gmforge/battlemap/internal/data"
	"github.com/gmforge/battlemap/internal/game/effect"
	"github.com/gmforge/battlemap/internal/model"
)

// Animation speed multiplier bounds.
const (
	MinAnimationSpeed = 0.1
	MaxAnimationSpeed = 5.0
)

// ObjectStore is the external owner of the placed-object list.
// The engine never mutates objects except through these operations.
type ObjectStore interface {
	AddObject(obj *model.MapObject) error
	DeleteObject(id string)
	Objects(mapID string) []*model.MapObject
}

// Durations holds the base playback duration per action type, before
// scaling by the animation speed multiplier.
type Durations struct {
	Move        time.Duration
	Spell       time.Duration
	Interaction time.Duration
	Appear      time.Duration
	Disappear   time.Duration
}

// DefaultDurations returns the stock playback durations.
func DefaultDurations() Durations {
	return Durations{
		Move:        800 * time.Millisecond,
		Spell:       1000 * time.Millisecond,
		Interaction: 500 * time.Millisecond,
		Appear:      300 * time.Millisecond,
		Disappear:   300 * time.Millisecond,
	}
}

// For returns the base duration for an action type.
func (d Durations) For(t model.ActionType) time.Duration {
	switch t {
	case model.ActionMove:
		return d.Move
	case model.ActionSpell:
		return d.Spell
	case model.ActionInteraction:
		return d.Interaction
	case model.ActionAppear:
		return d.Appear
	case model.ActionDisappear:
		return d.Disappear
	default:
		return d.Interaction
	}
}

// Engine owns combat timelines, one per map, with a single active cursor.
// Collaborators (object store, animator, spell catalog) are injected; the
// engine keeps no global state, so tests construct isolated instances.
//
// Every round navigation bumps a generation counter. In-flight action
// executions capture the generation at dispatch and re-check it before
// committing any state, so a stale round's playback cannot mutate the
// timeline after the user has jumped elsewhere.
type Engine struct {
	mu        sync.Mutex
	store     ObjectStore
	animator  animation.Animator
	spells    *data.SpellCatalog
	durations Durations

	// timelines retains every timeline ever started, keyed by map id,
	// so ending combat and restarting it keeps the same identity and
	// history.
	timelines  map[string]*model.Timeline
	active     *model.Timeline
	speed      float64
	generation uint64

	// executing holds the round numbers currently being played, so a
	// concurrent dispatch for the same round is a no-op instead of a
	// double playback.
	executing map[int]struct{}
}

// NewEngine creates an engine with injected collaborators.
// spells may be nil; spell actions then place effects with defaults.
func NewEngine(store ObjectStore, animator animation.Animator, spells *data.SpellCatalog, durations Durations) *Engine {
	return &Engine{
		store:     store,
		animator:  animator,
		spells:    spells,
		durations: durations,
		timelines: make(map[string]*model.Timeline),
		executing: make(map[int]struct{}),
		speed:     1.0,
	}
}

func newRound(n int) *model.Round {
	return &model.Round{
		ID:        uuid.NewString(),
		Number:    n,
		Timestamp: time.Now(),
	}
}

// StartCombat activates the timeline for mapID, creating it on first use.
// A previously ended timeline for the same map is reactivated in place:
// same id, same history, retained round data.
func (e *Engine) StartCombat(mapID string) *model.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.generation++

	t, ok := e.timelines[mapID]
	if !ok {
		t = &model.Timeline{
			ID:           uuid.NewString(),
			MapID:        mapID,
			CurrentRound: 1,
			IsActive:     true,
		}
		t.InsertRound(newRound(1))
		e.timelines[mapID] = t
	} else {
		t.IsActive = true
		if t.RoundByNumber(t.CurrentRound) == nil {
			t.InsertRound(newRound(t.CurrentRound))
		}
	}
	e.active = t
	return t.Clone()
}

// EndCombat retires the active timeline: every live round moves onto the
// end of history in order, the round list clears, and the timeline goes
// inactive. CurrentRound is kept for reactivation.
func (e *Engine) EndCombat() {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.active
	if t == nil || !t.IsActive {
		return
	}
	e.generation++

	t.History = append(t.History, t.Rounds...)
	t.Rounds = nil
	t.IsActive = false
}

// NextRound advances to the next round: creates it if absent, runs the
// effect lifecycle sweep at the new round, then plays the round's pending
// actions if it has any. No-op while combat is inactive.
func (e *Engine) NextRound(ctx context.Context) error {
	e.mu.Lock()
	t := e.active
	if t == nil || !t.IsActive {
		e.mu.Unlock()
		return nil
	}

	e.generation++
	gen := e.generation

	t.CurrentRound++
	r := t.RoundByNumber(t.CurrentRound)
	if r == nil {
		r = t.InsertRound(newRound(t.CurrentRound))
	}
	mapID, round := t.MapID, t.CurrentRound
	hasWork := !r.Executed && len(r.Actions) > 0

	// The sweep completes before the new round number becomes observable.
	effect.Sweep(e.store, mapID, round)
	e.mu.Unlock()

	if hasWork {
		return e.executeRound(ctx, round, gen)
	}
	return nil
}

// PreviousRound steps back one round, floored at 1. Navigating backward
// runs no lifecycle sweep: deleted effects stay deleted.
func (e *Engine) PreviousRound() {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.active
	if t == nil || !t.IsActive {
		return
	}
	if t.CurrentRound <= 1 {
		return
	}
	e.generation++
	t.CurrentRound--
}

// GoToRound jumps to round n (n >= 1), creating it if absent, and runs the
// lifecycle sweep at n regardless of direction of travel. The sweep only
// ever deletes; a backward jump cannot resurrect an expired effect.
func (e *Engine) GoToRound(n int) error {
	if n < 1 {
		return fmt.Errorf("go to round %d: round numbers start at 1", n)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.active
	if t == nil || !t.IsActive {
		return nil
	}
	e.generation++

	t.CurrentRound = n
	if t.RoundByNumber(n) == nil {
		t.InsertRound(newRound(n))
	}
	effect.Sweep(e.store, t.MapID, n)
	return nil
}

// AddAction schedules an action on the given round, creating the round if
// missing. roundNumber 0 means the current round. Returns the action id,
// or "" when no timeline exists (silent no-op: the UI calls speculatively).
func (e *Engine) AddAction(tokenID string, typ model.ActionType, actionData map[string]any, roundNumber int) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.active
	if t == nil {
		return ""
	}
	if roundNumber <= 0 {
		roundNumber = t.CurrentRound
	}

	r := t.RoundByNumber(roundNumber)
	if r == nil {
		r = t.InsertRound(newRound(roundNumber))
	}

	a := &model.Action{
		ID:      uuid.NewString(),
		TokenID: tokenID,
		Type:    typ,
		Data:    actionData,
	}
	r.AppendAction(a)
	return a.ID
}

// ActionUpdate carries the fields UpdateAction may change. Nil pointers
// leave the field untouched; a non-nil Data replaces the payload.
type ActionUpdate struct {
	TokenID *string
	Type    *model.ActionType
	Data    map[string]any
}

// UpdateAction applies a partial update to an action located by id across
// all rounds. Unknown ids and absent timelines are silent no-ops.
func (e *Engine) UpdateAction(actionID string, update ActionUpdate) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.active
	if t == nil {
		return
	}
	_, a := t.FindAction(actionID)
	if a == nil {
		return
	}
	if update.TokenID != nil {
		a.TokenID = *update.TokenID
	}
	if update.Type != nil {
		a.Type = *update.Type
	}
	if update.Data != nil {
		a.Data = update.Data
	}
}

// RemoveAction deletes an action by id. The round's order counter is not
// rewound, so remaining and future actions keep a stable execution order.
// Unknown ids and absent timelines are silent no-ops.
func (e *Engine) RemoveAction(actionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.active
	if t == nil {
		return
	}
	r, a := t.FindAction(actionID)
	if a == nil {
		return
	}
	for i, cur := range r.Actions {
		if cur.ID == actionID {
			r.Actions = append(r.Actions[:i], r.Actions[i+1:]...)
			return
		}
	}
}

// ExecuteRoundActions plays the round's actions in order and marks the
// round executed. Returns immediately when no timeline exists, the round
// does not exist, the round already executed, or the round is already
// being played by another caller.
func (e *Engine) ExecuteRoundActions(ctx context.Context, roundNumber int) error {
	e.mu.Lock()
	t := e.active
	if t == nil {
		e.mu.Unlock()
		return nil
	}
	r := t.RoundByNumber(roundNumber)
	if r == nil || r.Executed {
		e.mu.Unlock()
		return nil
	}
	gen := e.generation
	e.mu.Unlock()

	return e.executeRound(ctx, roundNumber, gen)
}

// SetAnimationSpeed stores the playback speed multiplier, clamped to
// [MinAnimationSpeed, MaxAnimationSpeed].
func (e *Engine) SetAnimationSpeed(multiplier float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if multiplier < MinAnimationSpeed {
		multiplier = MinAnimationSpeed
	}
	if multiplier > MaxAnimationSpeed {
		multiplier = MaxAnimationSpeed
	}
	e.speed = multiplier
}

// AnimationSpeed returns the current speed multiplier.
func (e *Engine) AnimationSpeed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// CurrentRound returns the active timeline's round cursor, or 0.
func (e *Engine) CurrentRound() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return 0
	}
	return e.active.CurrentRound
}

// IsActive reports whether combat is running.
func (e *Engine) IsActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil && e.active.IsActive
}

// Timeline returns a deep-copy snapshot of the active timeline, or nil.
func (e *Engine) Timeline() *model.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return nil
	}
	return e.active.Clone()
}

// Timelines returns snapshots of every retained timeline, for persistence.
func (e *Engine) Timelines() []*model.Timeline {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*model.Timeline, 0, len(e.timelines))
	for _, t := range e.timelines {
		out = append(out, t.Clone())
	}
	return out
}

// Restore installs a persisted timeline, keeping its identity and history.
// An active restored timeline becomes the engine's cursor.
func (e *Engine) Restore(t *model.Timeline) {
	if t == nil || t.MapID == "" {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	dup := t.Clone()
	e.timelines[dup.MapID] = dup
	if dup.IsActive {
		e.active = dup
	}
}
