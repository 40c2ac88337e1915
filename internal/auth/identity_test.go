// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package auth_test

import (
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"

	"github.com/quizhub/quizhub/internal/auth"
)

func TestIdentityVariants(t *testing.T) {
	t.Run("registered", func(t *testing.T) {
		identity := auth.Registered{AccountID: ulid.Make(), Username: "alice"}

		assert.Equal(t, "alice", identity.DisplayName())
		assert.False(t, identity.IsGuest())
	})

	t.Run("guest", func(t *testing.T) {
		identity := auth.Guest{Name: "Guest-a1b2"}

		assert.Equal(t, "Guest-a1b2", identity.DisplayName())
		assert.True(t, identity.IsGuest())
	})
}

func TestNewGuest(t *testing.T) {
	guest := auth.NewGuest()

	assert.Regexp(t, `^Guest-[0-9a-f]{4}$`, guest.Name)
	assert.True(t, guest.IsGuest())
}
