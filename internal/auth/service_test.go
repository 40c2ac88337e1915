// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/quizhub/internal/auth"
	"github.com/quizhub/quizhub/internal/clock"
	"github.com/quizhub/quizhub/pkg/errutil"
)

// fakeAccountRepo is an in-memory AccountRepository with error
// injection for directory failures.
type fakeAccountRepo struct {
	accounts map[string]*auth.Account // keyed by lowercase username
	getErr   error
	createFn func(*auth.Account) error // optional Create override
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: make(map[string]*auth.Account)}
}

func (r *fakeAccountRepo) Create(_ context.Context, account *auth.Account) error {
	if r.createFn != nil {
		return r.createFn(account)
	}
	key := strings.ToLower(account.Username)
	if _, exists := r.accounts[key]; exists {
		return auth.ErrDuplicateUsername
	}
	r.accounts[key] = account
	return nil
}

func (r *fakeAccountRepo) GetByID(_ context.Context, id ulid.ULID) (*auth.Account, error) {
	for _, account := range r.accounts {
		if account.ID == id {
			return account, nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *fakeAccountRepo) GetByUsername(_ context.Context, username string) (*auth.Account, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	account, ok := r.accounts[strings.ToLower(username)]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return account, nil
}

func (r *fakeAccountRepo) UpdateScoreIfHigher(_ context.Context, username string, newScore int) (*auth.Account, bool, error) {
	account, ok := r.accounts[strings.ToLower(username)]
	if !ok {
		return nil, false, auth.ErrNotFound
	}
	if newScore > account.HighScore {
		account.HighScore = newScore
		return account, true, nil
	}
	return account, false, nil
}

func (r *fakeAccountRepo) IncrementGamesPlayed(_ context.Context, username string) error {
	account, ok := r.accounts[strings.ToLower(username)]
	if !ok {
		return auth.ErrNotFound
	}
	account.GamesPlayed++
	return nil
}

func (r *fakeAccountRepo) TopByScore(_ context.Context, n int) ([]auth.LeaderboardRow, error) {
	rows := make([]auth.LeaderboardRow, 0, len(r.accounts))
	for _, account := range r.accounts {
		rows = append(rows, auth.LeaderboardRow{
			Username:  account.Username,
			HighScore: account.HighScore,
			CreatedAt: account.CreatedAt,
		})
	}
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

var _ auth.AccountRepository = (*fakeAccountRepo)(nil)

func newTestService(t *testing.T) (*auth.Service, *fakeAccountRepo, *clock.Fake) {
	t.Helper()
	repo := newFakeAccountRepo()
	clk := clock.NewFake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	svc := auth.NewService(repo, auth.NewDigestHasher(), auth.NewLockoutTracker(clk), clk)
	return svc, repo, clk
}

func mustRegister(t *testing.T, svc *auth.Service, username, password string) *auth.Account {
	t.Helper()
	account, err := svc.Register(context.Background(), username, password)
	require.NoError(t, err)
	return account
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account with zero stats", func(t *testing.T) {
		svc, _, clk := newTestService(t)

		account, err := svc.Register(ctx, "alice", "hunter2")

		require.NoError(t, err)
		assert.Equal(t, "alice", account.Username)
		assert.Equal(t, auth.Digest("hunter2"), account.PasswordDigest)
		assert.Zero(t, account.HighScore)
		assert.Zero(t, account.GamesPlayed)
		assert.Equal(t, clk.Now(), account.CreatedAt)
	})

	t.Run("rejects duplicate username", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		mustRegister(t, svc, "bob", "hunter2")

		_, err := svc.Register(ctx, "bob", "other")

		errutil.AssertErrorCode(t, err, "AUTH_USERNAME_TAKEN")
	})

	t.Run("maps insert race to username taken", func(t *testing.T) {
		// The check-then-insert window: the lookup misses but a
		// concurrent registration wins the insert.
		svc, repo, _ := newTestService(t)
		repo.createFn = func(*auth.Account) error {
			return auth.ErrDuplicateUsername
		}

		_, err := svc.Register(ctx, "bob", "hunter2")

		errutil.AssertErrorCode(t, err, "AUTH_USERNAME_TAKEN")
	})

	t.Run("rejects invalid username", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Register(ctx, "x", "hunter2")

		errutil.AssertErrorCode(t, err, "AUTH_INVALID_USERNAME")
	})

	t.Run("rejects empty password", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Register(ctx, "alice", "")

		errutil.AssertErrorCode(t, err, "AUTH_EMPTY_PASSWORD")
	})

	t.Run("surfaces directory failure", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.getErr = errors.New("connection refused")

		_, err := svc.Register(ctx, "alice", "hunter2")

		errutil.AssertErrorCode(t, err, "AUTH_DIRECTORY_UNAVAILABLE")
	})
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("success returns the account", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		registered := mustRegister(t, svc, "alice", "hunter2")

		account, err := svc.Authenticate(ctx, "alice", "hunter2")

		require.NoError(t, err)
		assert.Equal(t, registered.ID, account.ID)
	})

	t.Run("unknown username is a distinct outcome", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.Authenticate(ctx, "nobody", "whatever")

		errutil.AssertErrorCode(t, err, "AUTH_USER_NOT_FOUND")
	})

	t.Run("unknown username never counts toward lockout", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		for range 10 {
			_, err := svc.Authenticate(ctx, "nobody", "whatever")
			errutil.AssertErrorCode(t, err, "AUTH_USER_NOT_FOUND")
		}

		// Register the name afterwards: the failed lookups left no
		// state behind and a wrong password still has two retries.
		mustRegister(t, svc, "nobody", "hunter2")
		_, err := svc.Authenticate(ctx, "nobody", "wrong")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
		errutil.AssertErrorContext(t, err, "attempts_left", 2)
	})

	t.Run("wrong password reports attempts left", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		mustRegister(t, svc, "alice", "hunter2")

		_, err := svc.Authenticate(ctx, "alice", "wrong")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
		errutil.AssertErrorContext(t, err, "attempts_left", 2)

		_, err = svc.Authenticate(ctx, "alice", "wrong")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
		errutil.AssertErrorContext(t, err, "attempts_left", 1)
	})

	t.Run("third wrong password locks the account", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		mustRegister(t, svc, "alice", "hunter2")

		for range 2 {
			_, err := svc.Authenticate(ctx, "alice", "wrong")
			errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
		}
		_, err := svc.Authenticate(ctx, "alice", "wrong")

		errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_LOCKED")
		errutil.AssertErrorContext(t, err, "remaining_seconds", 30)
	})

	t.Run("locked account rejects even the correct password", func(t *testing.T) {
		svc, _, clk := newTestService(t)
		mustRegister(t, svc, "alice", "hunter2")
		for range 3 {
			_, _ = svc.Authenticate(ctx, "alice", "wrong")
		}

		clk.Advance(10 * time.Second)
		_, err := svc.Authenticate(ctx, "alice", "hunter2")

		errutil.AssertErrorCode(t, err, "AUTH_ACCOUNT_LOCKED")
		errutil.AssertErrorContext(t, err, "remaining_seconds", 20)
	})

	t.Run("lock expiry allows login and resets the counter", func(t *testing.T) {
		svc, _, clk := newTestService(t)
		mustRegister(t, svc, "alice", "hunter2")
		for range 3 {
			_, _ = svc.Authenticate(ctx, "alice", "wrong")
		}

		clk.Advance(31 * time.Second)
		_, err := svc.Authenticate(ctx, "alice", "hunter2")
		require.NoError(t, err)

		// Counter was reset: a fresh wrong password has two retries.
		_, err = svc.Authenticate(ctx, "alice", "wrong")
		errutil.AssertErrorCode(t, err, "AUTH_INVALID_PASSWORD")
		errutil.AssertErrorContext(t, err, "attempts_left", 2)
	})

	t.Run("surfaces directory failure", func(t *testing.T) {
		svc, repo, _ := newTestService(t)
		repo.getErr = errors.New("connection refused")

		_, err := svc.Authenticate(ctx, "alice", "hunter2")

		errutil.AssertErrorCode(t, err, "AUTH_DIRECTORY_UNAVAILABLE")
	})
}

func TestService_GuestLogin(t *testing.T) {
	svc, _, _ := newTestService(t)

	guest := svc.GuestLogin()

	assert.True(t, guest.IsGuest())
	assert.True(t, strings.HasPrefix(guest.DisplayName(), "Guest-"))
}
