// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/quizhub/quizhub/internal/auth"
	"github.com/quizhub/quizhub/internal/core"
)

var tracer = otel.Tracer("quizhub/gateway")

// maxLineBytes bounds a single request line. Anything larger is a
// protocol violation and closes the connection.
const maxLineBytes = 64 * 1024

// ConnectionHandler handles a single client connection.
type ConnectionHandler struct {
	conn       net.Conn
	reader     *bufio.Reader
	deps       Deps
	connID     ulid.ULID
	identity   auth.Identity
	gameScore  int
	quitting   bool
	onClose    func()
	presenceCh chan core.Event
	chatCh     chan core.Event
}

// NewConnectionHandler creates a new handler.
func NewConnectionHandler(conn net.Conn, deps Deps) *ConnectionHandler {
	return &ConnectionHandler{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, maxLineBytes),
		deps:   deps,
		connID: core.NewULID(),
	}
}

// ConnID returns the connection's identifier.
func (h *ConnectionHandler) ConnID() ulid.ULID {
	return h.connID
}

// Handle processes the connection until closed.
func (h *ConnectionHandler) Handle(ctx context.Context) {
	defer func() {
		if h.onClose != nil {
			h.onClose()
		}
		// Idempotent: no-op if the client already logged out.
		h.deps.Registry.Remove(h.connID)
		h.unsubscribe()
		if err := h.conn.Close(); err != nil {
			slog.Debug("error closing connection", "error", err)
		}
	}()

	h.send(Response{Type: "hello", OK: true, Message: "welcome to QuizHub"})

	// Channel for lines read from the connection. errCh is buffered so
	// the reader goroutine can exit once the connection is closed even
	// if the handler loop has already returned.
	lineCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		for {
			line, err := h.reader.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			lineCh <- strings.TrimSpace(line)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case err := <-errCh:
			if !errors.Is(err, io.EOF) {
				slog.Debug("connection read error",
					"conn_id", h.connID.String(),
					"error", err,
				)
			}
			return

		case line := <-lineCh:
			h.processLine(ctx, line)
			if h.quitting {
				return
			}

		case event := <-chanOrNil(h.presenceCh):
			h.sendEvent(event)

		case event := <-chanOrNil(h.chatCh):
			// A sender sees its own chat as the chat_result response,
			// not again via the fanout.
			if event.Actor.ID != h.connID.String() {
				h.sendEvent(event)
			}
		}
	}
}

// chanOrNil returns ch, or nil when unsubscribed. A nil channel makes
// the select case block forever (never selected).
func chanOrNil(ch chan core.Event) <-chan core.Event {
	return ch
}

func (h *ConnectionHandler) processLine(ctx context.Context, line string) {
	if line == "" {
		return
	}

	var req Request
	if err := json.Unmarshal([]byte(line), &req); err != nil {
		h.send(Response{Type: RespError, Message: "malformed request: expected one JSON object per line"})
		return
	}

	ctx, span := tracer.Start(ctx, "request.handle",
		trace.WithAttributes(
			attribute.String("request.type", req.Type),
			attribute.String("conn.id", h.connID.String()),
		),
	)
	defer span.End()

	switch req.Type {
	case ReqRegister:
		h.handleRegister(ctx, req.Data)
	case ReqLogin:
		h.handleLogin(ctx, req.Data)
	case ReqGuestLogin:
		h.handleGuestLogin()
	case ReqResume:
		h.handleResume(req.Data)
	case ReqLogout:
		h.handleLogout()
	case ReqChat:
		h.handleChat(req.Data)
	case ReqQuestion:
		h.handleQuestion(ctx)
	case ReqAnswer:
		h.handleAnswer(ctx, req.Data)
	case ReqGameOver:
		h.handleGameOver(ctx)
	case ReqLeaderboard:
		h.handleLeaderboard(ctx, req.Data)
	default:
		h.send(Response{Type: RespError, Message: "unknown request type: " + req.Type})
	}
}

// establish records the authenticated identity, registers the session,
// and subscribes to the push streams.
func (h *ConnectionHandler) establish(identity auth.Identity) {
	h.identity = identity
	h.gameScore = 0
	h.deps.Registry.Establish(h.connID, identity)

	if h.deps.Broadcaster != nil && h.presenceCh == nil {
		h.presenceCh = h.deps.Broadcaster.Subscribe(core.StreamPresence)
		h.chatCh = h.deps.Broadcaster.Subscribe(core.StreamChat)
	}
}

// teardown reverts establish. Used by logout; disconnect cleanup runs
// through the Handle defer instead.
func (h *ConnectionHandler) teardown() {
	h.deps.Registry.Remove(h.connID)
	h.unsubscribe()
	h.identity = nil
	h.gameScore = 0
}

func (h *ConnectionHandler) unsubscribe() {
	if h.deps.Broadcaster == nil {
		return
	}
	if h.presenceCh != nil {
		h.deps.Broadcaster.Unsubscribe(core.StreamPresence, h.presenceCh)
		h.presenceCh = nil
	}
	if h.chatCh != nil {
		h.deps.Broadcaster.Unsubscribe(core.StreamChat, h.chatCh)
		h.chatCh = nil
	}
}

func (h *ConnectionHandler) handleChat(data json.RawMessage) {
	if h.identity == nil {
		h.send(Response{Type: RespChat, Message: "log in first"})
		return
	}

	var chat ChatData
	if err := json.Unmarshal(data, &chat); err != nil || chat.Message == "" {
		h.send(Response{Type: RespChat, Message: "chat message required"})
		return
	}

	payload, err := json.Marshal(core.ChatPayload{
		From:    h.identity.DisplayName(),
		Message: chat.Message,
	})
	if err != nil {
		slog.Error("failed to marshal chat payload",
			"conn_id", h.connID.String(),
			"error", err,
		)
		h.send(Response{Type: RespChat, Message: "message could not be sent"})
		return
	}

	h.deps.Broadcaster.Broadcast(core.Event{
		ID:        core.NewULID(),
		Stream:    core.StreamChat,
		Type:      core.EventTypeChat,
		Timestamp: time.Now(),
		Actor:     core.Actor{Kind: core.ActorPlayer, ID: h.connID.String()},
		Payload:   payload,
	})

	h.send(Response{Type: RespChat, OK: true})
}

func (h *ConnectionHandler) send(resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal response",
			"conn_id", h.connID.String(),
			"type", resp.Type,
			"error", err,
		)
		return
	}
	data = append(data, '\n')
	if _, err := h.conn.Write(data); err != nil {
		slog.Debug("failed to send response to client",
			"conn_id", h.connID.String(),
			"error", err,
		)
	}
}

func (h *ConnectionHandler) sendEvent(e core.Event) {
	switch e.Type {
	case core.EventTypePresence:
		var p core.PresencePayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			slog.Error("failed to unmarshal presence event",
				"event_id", e.ID.String(),
				"error", err,
			)
			return
		}
		h.send(Response{Type: PushPresence, OK: true, Data: p})
	case core.EventTypeChat:
		var p core.ChatPayload
		if err := json.Unmarshal(e.Payload, &p); err != nil {
			slog.Error("failed to unmarshal chat event",
				"event_id", e.ID.String(),
				"error", err,
			)
			return
		}
		h.send(Response{Type: PushChat, OK: true, Data: p})
	default:
		slog.Warn("unknown event type in sendEvent",
			"event_id", e.ID.String(),
			"type", e.Type,
		)
	}
}
