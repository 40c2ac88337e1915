// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package core

import (
	"encoding/json"
	"log/slog"
	"time"
)

// PresenceBroadcaster turns session-registry mutations into presence
// events on the presence stream. It satisfies session.PresenceNotifier.
type PresenceBroadcaster struct {
	broadcaster *Broadcaster
}

// NewPresenceBroadcaster creates a PresenceBroadcaster.
func NewPresenceBroadcaster(b *Broadcaster) *PresenceBroadcaster {
	return &PresenceBroadcaster{broadcaster: b}
}

// Notify publishes the online-name list to all presence subscribers.
// Fire-and-forget: marshal failures are logged and the broadcast
// skipped; the registry mutation that triggered it already happened.
func (p *PresenceBroadcaster) Notify(usernames []string) {
	payload, err := json.Marshal(PresencePayload{Online: usernames})
	if err != nil {
		slog.Error("failed to marshal presence payload",
			"online_count", len(usernames),
			"error", err,
		)
		return
	}

	p.broadcaster.Broadcast(Event{
		ID:        NewULID(),
		Stream:    StreamPresence,
		Type:      EventTypePresence,
		Timestamp: time.Now(),
		Actor:     Actor{Kind: ActorSystem, ID: "system"},
		Payload:   payload,
	})
}
