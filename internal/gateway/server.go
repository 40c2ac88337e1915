// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

// Package gateway provides the JSON-line TCP protocol adapter. Clients
// send one JSON request per line and receive one JSON response per
// line, plus pushed presence and chat events.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/quizhub/quizhub/internal/auth"
	"github.com/quizhub/quizhub/internal/core"
	"github.com/quizhub/quizhub/internal/leaderboard"
	"github.com/quizhub/quizhub/internal/observability"
	"github.com/quizhub/quizhub/internal/quiz"
	"github.com/quizhub/quizhub/internal/session"
)

// Deps are the services a connection handler dispatches into. Tokens
// and Metrics may be nil; the corresponding features degrade.
type Deps struct {
	Auth        *auth.Service
	Tokens      *auth.TokenIssuer
	Registry    *session.Registry
	Quiz        *quiz.Service
	Leaderboard *leaderboard.Service
	Broadcaster *core.Broadcaster
	Metrics     *observability.Metrics
}

// Server accepts client connections and tracks which ones are live.
type Server struct {
	addr     string
	listener net.Listener
	deps     Deps
	mu       sync.RWMutex

	liveMu sync.RWMutex
	live   map[ulid.ULID]struct{}
}

// NewServer creates a new gateway server.
func NewServer(addr string, deps Deps) *Server {
	return &Server{
		addr: addr,
		deps: deps,
		live: make(map[ulid.ULID]struct{}),
	}
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// IsLive reports whether connID belongs to a currently open
// connection. Satisfies session.LivenessCheck.
func (s *Server) IsLive(connID ulid.ULID) bool {
	s.liveMu.RLock()
	defer s.liveMu.RUnlock()
	_, ok := s.live[connID]
	return ok
}

func (s *Server) markLive(connID ulid.ULID) {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	s.live[connID] = struct{}{}
}

func (s *Server) markDead(connID ulid.ULID) {
	s.liveMu.Lock()
	defer s.liveMu.Unlock()
	delete(s.live, connID)
}

// Run starts the server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	slog.Info("gateway server started", "addr", listener.Addr())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			slog.Debug("error closing listener", "error", err)
		}
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				slog.Error("accept failed", "error", err)
				continue
			}
		}

		handler := NewConnectionHandler(conn, s.deps)
		s.markLive(handler.connID)
		if s.deps.Metrics != nil {
			s.deps.Metrics.ConnectionsTotal.Inc()
			s.deps.Metrics.ConnectionsActive.Inc()
		}

		// The handler marks the connection dead before it removes the
		// registry entry, so an authentication racing the disconnect
		// cannot establish a session after the removal.
		handler.onClose = func() {
			s.markDead(handler.connID)
			if s.deps.Metrics != nil {
				s.deps.Metrics.ConnectionsActive.Dec()
			}
		}

		go handler.Handle(ctx)
	}
}
