// Package server exposes the timeline engine and object store to editor
// clients over a newline-delimited JSON protocol on TCP.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/gmforge/battlemap/internal/game/timeline"
	"github.com/gmforge/battlemap/internal/model"
	"github.com/gmforge/battlemap/internal/world"
)

// Server handles editor sessions.
type Server struct {
	engine *timeline.Engine
	store  *world.MapStore
	hub    *Hub

	// gmPasswordHash is the bcrypt hash clients must match via the auth
	// op before issuing commands. Empty disables authentication.
	gmPasswordHash string
}

// New creates a Server.
func New(engine *timeline.Engine, store *world.MapStore, hub *Hub, gmPasswordHash string) *Server {
	return &Server{
		engine:         engine,
		store:          store,
		hub:            hub,
		gmPasswordHash: gmPasswordHash,
	}
}

// Serve accepts editor connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	slog.Info("battlemap server started", "address", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			slog.Error("failed to accept connection", "error", err)
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	wg.Wait()
	return nil
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	done := make(chan struct{})
	defer close(done)
	defer conn.Close()
	defer s.hub.remove(conn)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	slog.Debug("client connected", "remote", conn.RemoteAddr())

	authed := s.gmPasswordHash == ""
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			s.reply(conn, Response{Error: fmt.Sprintf("bad request: %v", err)})
			continue
		}

		if !authed && req.Op != OpAuth {
			s.reply(conn, Response{Error: "not authenticated"})
			continue
		}

		resp := s.dispatch(ctx, conn, &authed, req)
		s.reply(conn, resp)
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		slog.Debug("client read error", "remote", conn.RemoteAddr(), "error", err)
	}
	slog.Debug("client disconnected", "remote", conn.RemoteAddr())
}

func (s *Server) dispatch(ctx context.Context, conn net.Conn, authed *bool, req Request) Response {
	switch req.Op {
	case OpAuth:
		if s.gmPasswordHash != "" {
			if err := bcrypt.CompareHashAndPassword([]byte(s.gmPasswordHash), []byte(req.Password)); err != nil {
				slog.Warn("failed auth attempt", "remote", conn.RemoteAddr())
				return Response{Error: "invalid password"}
			}
		}
		*authed = true
		s.hub.add(conn)
		return s.ok()

	case OpStartCombat:
		if req.MapID == "" {
			return Response{Error: "map_id required"}
		}
		t := s.engine.StartCombat(req.MapID)
		return Response{OK: true, Active: true, Round: t.CurrentRound, Timeline: t}

	case OpEndCombat:
		s.engine.EndCombat()
		return s.ok()

	case OpNextRound:
		if err := s.engine.NextRound(ctx); err != nil {
			return Response{Error: err.Error()}
		}
		return s.ok()

	case OpPreviousRound:
		s.engine.PreviousRound()
		return s.ok()

	case OpGoToRound:
		if err := s.engine.GoToRound(req.Round); err != nil {
			return Response{Error: err.Error()}
		}
		return s.ok()

	case OpAddAction:
		id := s.engine.AddAction(req.TokenID, model.ActionType(req.Type), req.Data, req.Round)
		resp := s.ok()
		resp.ActionID = id
		return resp

	case OpUpdateAction:
		update := timeline.ActionUpdate{Data: req.Data}
		if req.TokenID != "" {
			update.TokenID = &req.TokenID
		}
		if req.Type != "" {
			typ := model.ActionType(req.Type)
			update.Type = &typ
		}
		s.engine.UpdateAction(req.ActionID, update)
		return s.ok()

	case OpRemoveAction:
		s.engine.RemoveAction(req.ActionID)
		return s.ok()

	case OpExecuteRound:
		if err := s.engine.ExecuteRoundActions(ctx, req.Round); err != nil {
			return Response{Error: err.Error()}
		}
		return s.ok()

	case OpSetSpeed:
		s.engine.SetAnimationSpeed(req.Speed)
		return s.ok()

	case OpTimeline:
		resp := s.ok()
		resp.Timeline = s.engine.Timeline()
		return resp

	case OpAddObject:
		if req.Object == nil {
			return Response{Error: "object required"}
		}
		if err := s.store.AddObject(req.Object); err != nil {
			return Response{Error: err.Error()}
		}
		return s.ok()

	case OpDeleteObject:
		s.store.DeleteObject(req.ObjectID)
		return s.ok()

	case OpListObjects:
		resp := s.ok()
		resp.Objects = s.store.Objects(req.MapID)
		return resp

	default:
		return Response{Error: fmt.Sprintf("unknown op %q", req.Op)}
	}
}

// ok builds a success response carrying the engine's current state.
func (s *Server) ok() Response {
	return Response{
		OK:     true,
		Round:  s.engine.CurrentRound(),
		Active: s.engine.IsActive(),
		Speed:  s.engine.AnimationSpeed(),
	}
}

func (s *Server) reply(conn net.Conn, resp Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		slog.Error("encoding response", "error", err)
		return
	}
	payload = append(payload, '\n')
	if _, err := conn.Write(payload); err != nil {
		slog.Debug("writing response failed", "remote", conn.RemoteAddr(), "error", err)
	}
}
