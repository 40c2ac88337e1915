// Package core contains the shared event types and fanout machinery.
package core

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Stream names. Every connected client is subscribed to both.
const (
	StreamPresence = "presence"
	StreamChat     = "chat"
)

// EventType identifies the kind of event.
type EventType string

const (
	EventTypePresence EventType = "presence"
	EventTypeChat     EventType = "chat"
	EventTypeSystem   EventType = "system"
)

// ActorKind identifies what type of entity caused an event.
type ActorKind uint8

const (
	ActorPlayer ActorKind = iota
	ActorSystem
)

func (a ActorKind) String() string {
	switch a {
	case ActorPlayer:
		return "player"
	case ActorSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Actor represents who or what caused an event. For player events the
// ID is the originating connection ULID, which lets that connection
// filter its own events out of the fanout.
type Actor struct {
	Kind ActorKind
	ID   string // connection ULID, or "system"
}

// Event is one fanout unit delivered to subscribed connections.
type Event struct {
	ID        ulid.ULID
	Stream    string
	Type      EventType
	Timestamp time.Time
	Actor     Actor
	Payload   []byte // JSON
}

// PresencePayload is the JSON payload for presence events.
type PresencePayload struct {
	Online []string `json:"online"`
}

// ChatPayload is the JSON payload for chat events.
type ChatPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}
