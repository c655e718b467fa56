package timeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmforge/battlemap/internal/data"
	"github.com/gmforge/battlemap/internal/model"
	"github.com/gmforge/battlemap/internal/world"
)

// recAnimator records played tokens and can fail or run a hook per play.
type recAnimator struct {
	mu     sync.Mutex
	played []string
	failOn map[string]bool
	onPlay func(a *model.Action)
}

func (r *recAnimator) Play(_ context.Context, _ string, a *model.Action, _ time.Duration) error {
	r.mu.Lock()
	r.played = append(r.played, a.TokenID)
	fail := r.failOn[a.TokenID]
	hook := r.onPlay
	r.mu.Unlock()

	if hook != nil {
		hook(a)
	}
	if fail {
		return errors.New("renderer exploded")
	}
	return nil
}

func (r *recAnimator) playedTokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.played))
	copy(out, r.played)
	return out
}

func newExecEngine(t *testing.T, anim *recAnimator) (*Engine, *world.MapStore) {
	t.Helper()
	spells, err := data.LoadSpellCatalog("")
	require.NoError(t, err)

	store := world.NewMapStore()
	return NewEngine(store, anim, spells, Durations{}), store
}

func TestExecuteRoundActions_EmptyRoundStillExecutes(t *testing.T) {
	anim := &recAnimator{}
	e, _ := newExecEngine(t, anim)
	e.StartCombat("m1")

	require.NoError(t, e.ExecuteRoundActions(context.Background(), 1))

	r := e.Timeline().RoundByNumber(1)
	require.NotNil(t, r)
	assert.True(t, r.Executed)
	assert.Empty(t, anim.playedTokens())
}

func TestExecuteRoundActions_PlaysInOrder(t *testing.T) {
	anim := &recAnimator{}
	e, _ := newExecEngine(t, anim)
	e.StartCombat("m1")
	e.AddAction("first", model.ActionMove, nil, 1)
	e.AddAction("second", model.ActionInteraction, nil, 1)
	e.AddAction("third", model.ActionDisappear, nil, 1)

	require.NoError(t, e.ExecuteRoundActions(context.Background(), 1))

	assert.Equal(t, []string{"first", "second", "third"}, anim.playedTokens())

	snap := e.Timeline()
	r := snap.RoundByNumber(1)
	require.NotNil(t, r)
	assert.True(t, r.Executed)
	for _, a := range r.Actions {
		assert.True(t, a.Executed, "action %s", a.TokenID)
	}
}

func TestExecuteRoundActions_MissingRoundAndNoTimeline(t *testing.T) {
	anim := &recAnimator{}
	e, _ := newExecEngine(t, anim)

	require.NoError(t, e.ExecuteRoundActions(context.Background(), 1))

	e.StartCombat("m1")
	require.NoError(t, e.ExecuteRoundActions(context.Background(), 7))
	assert.Empty(t, anim.playedTokens())
}

func TestExecuteRoundActions_Idempotent(t *testing.T) {
	anim := &recAnimator{}
	e, _ := newExecEngine(t, anim)
	e.StartCombat("m1")
	e.AddAction("tok", model.ActionMove, nil, 1)

	require.NoError(t, e.ExecuteRoundActions(context.Background(), 1))
	require.NoError(t, e.ExecuteRoundActions(context.Background(), 1))

	assert.Len(t, anim.playedTokens(), 1, "executed round must not replay")
}

func TestExecuteRoundActions_FailureIsolated(t *testing.T) {
	anim := &recAnimator{failOn: map[string]bool{"second": true}}
	e, _ := newExecEngine(t, anim)
	e.StartCombat("m1")
	e.AddAction("first", model.ActionMove, nil, 1)
	e.AddAction("second", model.ActionMove, nil, 1)
	e.AddAction("third", model.ActionMove, nil, 1)

	require.NoError(t, e.ExecuteRoundActions(context.Background(), 1))

	assert.Equal(t, []string{"first", "second", "third"}, anim.playedTokens())
	r := e.Timeline().RoundByNumber(1)
	require.NotNil(t, r)
	assert.True(t, r.Executed, "one failed animation must not abort the round")
}

func TestExecuteRoundActions_SpellPlacesEffect(t *testing.T) {
	anim := &recAnimator{}
	e, store := newExecEngine(t, anim)
	e.StartCombat("m1")
	e.AddAction("caster", model.ActionSpell, map[string]any{
		"spell": "Web",
		"x":     float64(30),
		"y":     float64(40),
	}, 1)

	require.NoError(t, e.ExecuteRoundActions(context.Background(), 1))

	objects := store.Objects("m1")
	require.Len(t, objects, 1)
	web := objects[0]
	assert.True(t, web.IsSpellEffect)
	assert.Equal(t, "Web", web.Label)
	assert.Equal(t, 1, web.RoundCreated)
	assert.Equal(t, 3, web.SpellDuration)
	assert.Equal(t, 30.0, web.X)
	assert.Equal(t, 40.0, web.Y)
}

func TestExecutedSpell_ExpiresOnSchedule(t *testing.T) {
	// Web cast in round 2 with duration 3: present at rounds 2, 3, 4;
	// gone at round 5.
	anim := &recAnimator{}
	e, store := newExecEngine(t, anim)
	ctx := context.Background()
	e.StartCombat("m1")
	e.AddAction("caster", model.ActionSpell, map[string]any{"spell": "Web"}, 2)

	require.NoError(t, e.NextRound(ctx)) // round 2: auto-executes the cast
	require.Len(t, store.Objects("m1"), 1)

	require.NoError(t, e.NextRound(ctx)) // 3
	require.NoError(t, e.NextRound(ctx)) // 4
	assert.Len(t, store.Objects("m1"), 1)

	require.NoError(t, e.NextRound(ctx)) // 5
	assert.Empty(t, store.Objects("m1"))
}

func TestExecuteRoundActions_StaleGenerationCommitsNothing(t *testing.T) {
	anim := &recAnimator{}
	e, store := newExecEngine(t, anim)
	ctx := context.Background()
	e.StartCombat("m1")
	require.NoError(t, e.NextRound(ctx))
	e.AddAction("caster", model.ActionSpell, map[string]any{"spell": "Web"}, 2)

	// Navigate away while the first action is animating: the execution
	// becomes stale and must not commit flags or place the effect.
	anim.onPlay = func(*model.Action) {
		e.PreviousRound()
	}

	require.NoError(t, e.ExecuteRoundActions(ctx, 2))

	assert.Empty(t, store.Objects("m1"))
	r := e.Timeline().RoundByNumber(2)
	require.NotNil(t, r)
	assert.False(t, r.Executed)
	for _, a := range r.Actions {
		assert.False(t, a.Executed)
	}
}

func TestExecuteRoundActions_ConcurrentCallsPlayOnce(t *testing.T) {
	// Two clients dispatching the same round: the second call must find
	// the round claimed and commit nothing, so one cast yields exactly
	// one playback and one effect object.
	anim := &recAnimator{}
	e, store := newExecEngine(t, anim)
	e.StartCombat("m1")
	e.AddAction("caster", model.ActionSpell, map[string]any{"spell": "Web"}, 1)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	anim.onPlay = func(*model.Action) {
		once.Do(func() { close(started) })
		<-release
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.ExecuteRoundActions(context.Background(), 1)
	}()
	<-started

	// First execution is mid-playback; this one must return immediately.
	require.NoError(t, e.ExecuteRoundActions(context.Background(), 1))

	close(release)
	<-done

	assert.Len(t, anim.playedTokens(), 1, "one cast plays once")
	assert.Len(t, store.Objects("m1"), 1, "one cast places one effect")
	r := e.Timeline().RoundByNumber(1)
	require.NotNil(t, r)
	assert.True(t, r.Executed)
}

func TestUnknownSpell_PlacesInstantEffect(t *testing.T) {
	anim := &recAnimator{}
	e, store := newExecEngine(t, anim)
	e.StartCombat("m1")
	e.AddAction("caster", model.ActionSpell, map[string]any{"spell": "Nonsense"}, 1)

	require.NoError(t, e.ExecuteRoundActions(context.Background(), 1))

	objects := store.Objects("m1")
	require.Len(t, objects, 1)
	assert.Equal(t, 0, objects[0].SpellDuration, "unknown spells are never swept")

	// A later sweep leaves it alone.
	require.NoError(t, e.GoToRound(50))
	assert.Len(t, store.Objects("m1"), 1)
}
