package server

import (
	"encoding/json"
	"log/slog"
	"net"
	"sync"

	"github.com/gmforge/battlemap/internal/animation"
)

// Hub tracks connected editor clients and pushes playback events to them.
type Hub struct {
	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[net.Conn]struct{})}
}

func (h *Hub) add(conn net.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn] = struct{}{}
}

func (h *Hub) remove(conn net.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, conn)
}

// event is the envelope pushed to clients, distinguishable from command
// responses by the "event" field.
type event struct {
	Event    string                  `json:"event"`
	Playback animation.PlaybackEvent `json:"playback"`
}

// BroadcastPlayback sends an action playback event to every client.
// Matches animation.BroadcastFunc so it can be injected into the animator.
func (h *Hub) BroadcastPlayback(ev animation.PlaybackEvent) {
	payload, err := json.Marshal(event{Event: "playback", Playback: ev})
	if err != nil {
		slog.Error("encoding playback event", "error", err)
		return
	}
	payload = append(payload, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if _, err := conn.Write(payload); err != nil {
			slog.Debug("dropping unreachable client", "remote", conn.RemoteAddr(), "error", err)
			delete(h.conns, conn)
			conn.Close()
		}
	}
}
