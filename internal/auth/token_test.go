// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package auth_test

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/quizhub/internal/auth"
	"github.com/quizhub/quizhub/internal/clock"
	"github.com/quizhub/quizhub/pkg/errutil"
)

var testTokenSecret = []byte("0123456789abcdef0123456789abcdef")

func newIssuer(t *testing.T, ttlSeconds int64) (*auth.TokenIssuer, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	issuer, err := auth.NewTokenIssuer(testTokenSecret, ttlSeconds, clk)
	require.NoError(t, err)
	return issuer, clk
}

func TestNewTokenIssuer(t *testing.T) {
	clk := clock.NewFake(time.Now())

	t.Run("rejects short secret", func(t *testing.T) {
		_, err := auth.NewTokenIssuer([]byte("too-short"), 3600, clk)

		errutil.AssertErrorCode(t, err, "TOKEN_SECRET_TOO_SHORT")
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		_, err := auth.NewTokenIssuer(testTokenSecret, 0, clk)

		errutil.AssertErrorCode(t, err, "TOKEN_TTL_INVALID")
	})
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	t.Run("registered identity", func(t *testing.T) {
		issuer, _ := newIssuer(t, 3600)
		identity := auth.Registered{AccountID: ulid.Make(), Username: "alice"}

		token, err := issuer.Issue(identity)
		require.NoError(t, err)

		got, err := issuer.Verify(token)
		require.NoError(t, err)
		registered, ok := got.(auth.Registered)
		require.True(t, ok)
		assert.Equal(t, identity.AccountID, registered.AccountID)
		assert.Equal(t, "alice", registered.Username)
	})

	t.Run("guest identity", func(t *testing.T) {
		issuer, _ := newIssuer(t, 3600)
		identity := auth.Guest{Name: "Guest-a1b2"}

		token, err := issuer.Issue(identity)
		require.NoError(t, err)

		got, err := issuer.Verify(token)
		require.NoError(t, err)
		guest, ok := got.(auth.Guest)
		require.True(t, ok)
		assert.Equal(t, "Guest-a1b2", guest.Name)
	})
}

func TestTokenIssuer_Verify(t *testing.T) {
	t.Run("rejects expired token", func(t *testing.T) {
		issuer, clk := newIssuer(t, 60)
		token, err := issuer.Issue(auth.Guest{Name: "Guest-a1b2"})
		require.NoError(t, err)

		clk.Advance(61 * time.Second)
		_, err = issuer.Verify(token)

		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("accepts token just before expiry", func(t *testing.T) {
		issuer, clk := newIssuer(t, 60)
		token, err := issuer.Issue(auth.Guest{Name: "Guest-a1b2"})
		require.NoError(t, err)

		clk.Advance(59 * time.Second)
		_, err = issuer.Verify(token)

		assert.NoError(t, err)
	})

	t.Run("rejects token signed with another secret", func(t *testing.T) {
		issuer, _ := newIssuer(t, 3600)
		other, err := auth.NewTokenIssuer([]byte("ffffffffffffffffffffffffffffffff"), 3600, clock.NewFake(time.Now()))
		require.NoError(t, err)

		token, err := other.Issue(auth.Guest{Name: "Guest-a1b2"})
		require.NoError(t, err)

		_, err = issuer.Verify(token)
		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})

	t.Run("rejects garbage", func(t *testing.T) {
		issuer, _ := newIssuer(t, 3600)

		_, err := issuer.Verify("not.a.token")

		errutil.AssertErrorCode(t, err, "TOKEN_INVALID")
	})
}
