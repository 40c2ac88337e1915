// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package auth

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/oklog/ulid/v2"
)

// Identity is who a connection is logged in as: a registered account or
// a guest. It is a sealed variant so consumers must handle both cases
// explicitly rather than checking nullable fields.
type Identity interface {
	// DisplayName is the name shown in presence lists and chat.
	DisplayName() string

	// IsGuest reports whether the identity is a guest.
	IsGuest() bool
}

// Registered identifies a connection logged in to an account.
type Registered struct {
	AccountID ulid.ULID
	Username  string
}

// DisplayName returns the account username.
func (r Registered) DisplayName() string { return r.Username }

// IsGuest returns false.
func (r Registered) IsGuest() bool { return false }

// Guest identifies an anonymous connection. Guests have no account ID
// and no persisted stats.
type Guest struct {
	Name string
}

// DisplayName returns the generated guest name.
func (g Guest) DisplayName() string { return g.Name }

// IsGuest returns true.
func (g Guest) IsGuest() bool { return true }

// NewGuest creates a Guest with a random display name like "Guest-a1b2".
func NewGuest() Guest {
	var suffix [2]byte
	// rand.Read on a 2-byte buffer cannot fail in practice; fall back
	// to a fixed suffix if it somehow does.
	if _, err := rand.Read(suffix[:]); err != nil {
		return Guest{Name: "Guest-0000"}
	}
	return Guest{Name: "Guest-" + hex.EncodeToString(suffix[:])}
}
