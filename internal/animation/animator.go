// Package animation defines the playback collaborator consumed by the
// action executor, plus the default timed implementation used by the
// server: it announces the action to connected clients and waits out the
// scaled duration, leaving the actual visual tweening to them.
package animation

import (
	"context"
	"time"

	"github.com/gmforge/battlemap/internal/model"
)

// Animator performs the visual effect for one action and returns when the
// playback is considered finished.
type Animator interface {
	Play(ctx context.Context, mapID string, action *model.Action, d time.Duration) error
}

// PlaybackEvent is what the timed animator publishes to clients when an
// action starts playing.
type PlaybackEvent struct {
	MapID      string           `json:"map_id"`
	ActionID   string           `json:"action_id"`
	TokenID    string           `json:"token_id"`
	Type       model.ActionType `json:"type"`
	Data       map[string]any   `json:"data,omitempty"`
	DurationMs int64            `json:"duration_ms"`
}

// BroadcastFunc delivers a playback event to whoever is watching.
// Injected to avoid a dependency on the session server.
type BroadcastFunc func(ev PlaybackEvent)

// TimedAnimator is the default Animator: broadcast, then wait the duration
// or until the context is cancelled.
type TimedAnimator struct {
	broadcast BroadcastFunc
}

// NewTimedAnimator creates a TimedAnimator. broadcast may be nil.
func NewTimedAnimator(broadcast BroadcastFunc) *TimedAnimator {
	return &TimedAnimator{broadcast: broadcast}
}

// Play publishes the playback event and blocks for d.
func (a *TimedAnimator) Play(ctx context.Context, mapID string, action *model.Action, d time.Duration) error {
	if a.broadcast != nil {
		a.broadcast(PlaybackEvent{
			MapID:      mapID,
			ActionID:   action.ID,
			TokenID:    action.TokenID,
			Type:       action.Type,
			Data:       action.Data,
			DurationMs: d.Milliseconds(),
		})
	}

	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
