package model

import (
	"sort"
	"time"
)

// ActionType classifies what an Action does when executed.
type ActionType string

const (
	ActionMove        ActionType = "move"
	ActionSpell       ActionType = "spell"
	ActionInteraction ActionType = "interaction"
	ActionAppear      ActionType = "appear"
	ActionDisappear   ActionType = "disappear"
)

// Action is a single scheduled step for a token within a round.
//
// Order is assigned once at insertion and never reused, even after other
// actions are removed, so execution order does not depend on slice layout.
type Action struct {
	ID          string
	TokenID     string
	Type        ActionType
	Data        map[string]any
	Executed    bool
	Order       int
	RoundNumber int
}

// Clone returns a deep copy of the action.
func (a *Action) Clone() *Action {
	dup := *a
	if a.Data != nil {
		dup.Data = make(map[string]any, len(a.Data))
		for k, v := range a.Data {
			dup.Data[k] = v
		}
	}
	return &dup
}

// Round is one discrete step of combat time holding an ordered action list.
type Round struct {
	ID        string
	Number    int
	Timestamp time.Time
	Actions   []*Action
	Executed  bool

	// NextOrder is the Order value handed to the next inserted action.
	// Monotonic per round; removals do not decrement it.
	NextOrder int
}

// AppendAction attaches an action to the round, assigning its Order and
// RoundNumber.
func (r *Round) AppendAction(a *Action) {
	a.Order = r.NextOrder
	a.RoundNumber = r.Number
	r.NextOrder++
	r.Actions = append(r.Actions, a)
}

// SortedActions returns the round's actions in ascending Order.
func (r *Round) SortedActions() []*Action {
	out := make([]*Action, len(r.Actions))
	copy(out, r.Actions)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

// Clone returns a deep copy of the round.
func (r *Round) Clone() *Round {
	dup := *r
	dup.Actions = make([]*Action, len(r.Actions))
	for i, a := range r.Actions {
		dup.Actions[i] = a.Clone()
	}
	return &dup
}

// Timeline is the combat state for one map: the live round list, the
// retired history, and the current round cursor.
//
// Invariant: Rounds is sorted ascending by Number with unique numbers.
// History is append-only; rounds move there when combat ends.
type Timeline struct {
	ID           string
	MapID        string
	Rounds       []*Round
	History      []*Round
	CurrentRound int
	IsActive     bool
}

// RoundByNumber returns the round with the given number, or nil.
func (t *Timeline) RoundByNumber(n int) *Round {
	i := sort.Search(len(t.Rounds), func(i int) bool { return t.Rounds[i].Number >= n })
	if i < len(t.Rounds) && t.Rounds[i].Number == n {
		return t.Rounds[i]
	}
	return nil
}

// InsertRound adds a round keeping Rounds sorted ascending by Number.
// If a round with the same number already exists it is returned unchanged.
func (t *Timeline) InsertRound(r *Round) *Round {
	i := sort.Search(len(t.Rounds), func(i int) bool { return t.Rounds[i].Number >= r.Number })
	if i < len(t.Rounds) && t.Rounds[i].Number == r.Number {
		return t.Rounds[i]
	}
	t.Rounds = append(t.Rounds, nil)
	copy(t.Rounds[i+1:], t.Rounds[i:])
	t.Rounds[i] = r
	return r
}

// FindAction locates an action by id across all live rounds.
// Returns the owning round and the action, or nil, nil.
func (t *Timeline) FindAction(actionID string) (*Round, *Action) {
	for _, r := range t.Rounds {
		for _, a := range r.Actions {
			if a.ID == actionID {
				return r, a
			}
		}
	}
	return nil, nil
}

// Clone returns a deep copy of the timeline.
func (t *Timeline) Clone() *Timeline {
	dup := *t
	dup.Rounds = make([]*Round, len(t.Rounds))
	for i, r := range t.Rounds {
		dup.Rounds[i] = r.Clone()
	}
	dup.History = make([]*Round, len(t.History))
	for i, r := range t.History {
		dup.History[i] = r.Clone()
	}
	return &dup
}
