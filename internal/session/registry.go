// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

// Package session tracks which identities are online, keyed by
// connection.
package session

import (
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/quizhub/quizhub/internal/auth"
)

// PresenceNotifier receives the fresh online-name list after every
// registry mutation. Fire-and-forget; the registry does not wait for
// delivery.
type PresenceNotifier func(usernames []string)

// LivenessCheck reports whether a connection is still live. Used to
// gate Establish so an authentication that completes after its
// connection disconnected cannot resurrect the session.
type LivenessCheck func(connID ulid.ULID) bool

// Registry is the process-wide mapping from connection identity to the
// identity logged in on it. Entries are removed on logout or
// disconnect, never flagged offline. A username may be present on any
// number of connections at once; each is tracked independently.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[ulid.ULID]auth.Identity
	order   []ulid.ULID // stable enumeration order for OnlineUsernames
	notify  PresenceNotifier
	isLive  LivenessCheck
}

// Option configures a Registry.
type Option func(*Registry)

// WithLivenessCheck gates Establish on the given check.
func WithLivenessCheck(check LivenessCheck) Option {
	return func(r *Registry) {
		r.isLive = check
	}
}

// NewRegistry creates a Registry. notify is invoked synchronously with
// the fresh online-name list after every mutation; it may be nil.
func NewRegistry(notify PresenceNotifier, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[ulid.ULID]auth.Identity),
		notify:  notify,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Establish inserts or overwrites the entry for connID. Idempotent
// overwrite, no error. When a liveness check is configured and the
// connection is already gone, the establish is dropped: the in-flight
// login that raced a disconnect must not leave a ghost session behind.
func (r *Registry) Establish(connID ulid.ULID, identity auth.Identity) {
	r.mu.Lock()

	if r.isLive != nil && !r.isLive(connID) {
		r.mu.Unlock()
		slog.Debug("establish dropped for dead connection",
			"conn_id", connID.String(),
			"name", identity.DisplayName(),
		)
		return
	}

	if _, exists := r.entries[connID]; !exists {
		r.order = append(r.order, connID)
	}
	r.entries[connID] = identity
	names := r.onlineLocked()
	r.mu.Unlock()

	r.broadcast(names)
}

// Remove deletes the entry for connID if present; no-op otherwise.
// Safe to call before Establish for the same connection and safe to
// call twice.
func (r *Registry) Remove(connID ulid.ULID) {
	r.mu.Lock()

	if _, exists := r.entries[connID]; !exists {
		r.mu.Unlock()
		return
	}
	delete(r.entries, connID)
	for i, id := range r.order {
		if id == connID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	names := r.onlineLocked()
	r.mu.Unlock()

	r.broadcast(names)
}

// Get returns the identity for connID, or nil if none.
func (r *Registry) Get(connID ulid.ULID) auth.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[connID]
}

// OnlineUsernames returns the display names of all present entries in
// establishment order. A username logged in on several connections
// appears once per connection.
func (r *Registry) OnlineUsernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.onlineLocked()
}

// Count returns the number of present entries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// onlineLocked builds the name list. Callers must hold mu.
func (r *Registry) onlineLocked() []string {
	names := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if identity, ok := r.entries[id]; ok {
			names = append(names, identity.DisplayName())
		}
	}
	return names
}

// broadcast invokes the notifier outside the lock so a slow consumer
// cannot stall registry mutations.
func (r *Registry) broadcast(names []string) {
	if r.notify != nil {
		r.notify(names)
	}
}
