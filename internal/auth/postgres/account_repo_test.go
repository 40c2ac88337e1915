// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizhub/quizhub/internal/auth"
	"github.com/quizhub/quizhub/internal/auth/postgres"
	"github.com/quizhub/quizhub/pkg/errutil"
)

var accountColumns = []string{
	"id", "username", "password_digest", "high_score", "games_played",
	"created_at", "updated_at",
}

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err, "failed to create mock")
	t.Cleanup(mock.Close)
	return mock
}

func testAccount() *auth.Account {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &auth.Account{
		ID:             ulid.Make(),
		Username:       "alice",
		PasswordDigest: auth.Digest("hunter2"),
		HighScore:      40,
		GamesPlayed:    7,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func accountRows(account *auth.Account) *pgxmock.Rows {
	return pgxmock.NewRows(accountColumns).AddRow(
		account.ID.String(),
		account.Username,
		account.PasswordDigest,
		account.HighScore,
		account.GamesPlayed,
		account.CreatedAt,
		account.UpdatedAt,
	)
}

func TestAccountRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts the account", func(t *testing.T) {
		mock := newMockPool(t)
		account := testAccount()
		mock.ExpectExec(`INSERT INTO accounts`).
			WithArgs(
				account.ID.String(),
				account.Username,
				account.PasswordDigest,
				account.HighScore,
				account.GamesPlayed,
				account.CreatedAt,
				account.UpdatedAt,
			).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := postgres.NewAccountRepository(mock)
		err := repo.Create(ctx, account)

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation maps to duplicate username", func(t *testing.T) {
		mock := newMockPool(t)
		account := testAccount()
		mock.ExpectExec(`INSERT INTO accounts`).
			WithArgs(
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				pgxmock.AnyArg(),
			).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		repo := postgres.NewAccountRepository(mock)
		err := repo.Create(ctx, account)

		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrDuplicateUsername)
		errutil.AssertErrorCode(t, err, "ACCOUNT_DUPLICATE")
	})

	t.Run("other errors surface", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`INSERT INTO accounts`).
			WillReturnError(errors.New("connection refused"))

		repo := postgres.NewAccountRepository(mock)
		err := repo.Create(ctx, testAccount())

		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "ACCOUNT_CREATE_FAILED")
	})
}

func TestAccountRepository_GetByUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the account", func(t *testing.T) {
		mock := newMockPool(t)
		account := testAccount()
		mock.ExpectQuery(`SELECT .+ FROM accounts`).
			WithArgs("ALICE").
			WillReturnRows(accountRows(account))

		repo := postgres.NewAccountRepository(mock)
		got, err := repo.GetByUsername(ctx, "ALICE")

		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
		assert.Equal(t, "alice", got.Username)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT .+ FROM accounts`).
			WithArgs("nobody").
			WillReturnRows(pgxmock.NewRows(accountColumns))

		repo := postgres.NewAccountRepository(mock)
		_, err := repo.GetByUsername(ctx, "nobody")

		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
		errutil.AssertErrorCode(t, err, "ACCOUNT_NOT_FOUND")
	})
}

func TestAccountRepository_GetByID(t *testing.T) {
	ctx := context.Background()

	t.Run("missing row maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		id := ulid.Make()
		mock.ExpectQuery(`SELECT .+ FROM accounts`).
			WithArgs(id.String()).
			WillReturnRows(pgxmock.NewRows(accountColumns))

		repo := postgres.NewAccountRepository(mock)
		_, err := repo.GetByID(ctx, id)

		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAccountRepository_UpdateScoreIfHigher(t *testing.T) {
	ctx := context.Background()

	t.Run("updates when the new score is higher", func(t *testing.T) {
		mock := newMockPool(t)
		account := testAccount()
		account.HighScore = 50
		mock.ExpectQuery(`UPDATE accounts`).
			WithArgs("alice", 50, pgxmock.AnyArg()).
			WillReturnRows(accountRows(account))

		repo := postgres.NewAccountRepository(mock)
		got, improved, err := repo.UpdateScoreIfHigher(ctx, "alice", 50)

		require.NoError(t, err)
		assert.True(t, improved)
		assert.Equal(t, 50, got.HighScore)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lower score leaves the record and reports unchanged", func(t *testing.T) {
		mock := newMockPool(t)
		account := testAccount()
		account.HighScore = 80
		// Conditional update touches no row, repository re-reads.
		mock.ExpectQuery(`UPDATE accounts`).
			WithArgs("carol", 50, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(accountColumns))
		mock.ExpectQuery(`SELECT .+ FROM accounts`).
			WithArgs("carol").
			WillReturnRows(accountRows(account))

		repo := postgres.NewAccountRepository(mock)
		got, improved, err := repo.UpdateScoreIfHigher(ctx, "carol", 50)

		require.NoError(t, err)
		assert.False(t, improved)
		assert.Equal(t, 80, got.HighScore)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown username maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`UPDATE accounts`).
			WithArgs("nobody", 50, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows(accountColumns))
		mock.ExpectQuery(`SELECT .+ FROM accounts`).
			WithArgs("nobody").
			WillReturnRows(pgxmock.NewRows(accountColumns))

		repo := postgres.NewAccountRepository(mock)
		_, _, err := repo.UpdateScoreIfHigher(ctx, "nobody", 50)

		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAccountRepository_IncrementGamesPlayed(t *testing.T) {
	ctx := context.Background()

	t.Run("increments", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs("alice", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := postgres.NewAccountRepository(mock)
		err := repo.IncrementGamesPlayed(ctx, "alice")

		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero rows maps to ErrNotFound", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectExec(`UPDATE accounts`).
			WithArgs("nobody", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := postgres.NewAccountRepository(mock)
		err := repo.IncrementGamesPlayed(ctx, "nobody")

		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})
}

func TestAccountRepository_TopByScore(t *testing.T) {
	ctx := context.Background()

	t.Run("returns rows in order", func(t *testing.T) {
		mock := newMockPool(t)
		now := time.Now()
		rows := pgxmock.NewRows([]string{"username", "high_score", "created_at"}).
			AddRow("alice", 90, now).
			AddRow("bob", 40, now)
		mock.ExpectQuery(`SELECT username, high_score, created_at`).
			WithArgs(10).
			WillReturnRows(rows)

		repo := postgres.NewAccountRepository(mock)
		got, err := repo.TopByScore(ctx, 10)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "alice", got[0].Username)
		assert.Equal(t, 90, got[0].HighScore)
		assert.Equal(t, "bob", got[1].Username)
	})

	t.Run("query error surfaces", func(t *testing.T) {
		mock := newMockPool(t)
		mock.ExpectQuery(`SELECT username, high_score, created_at`).
			WithArgs(10).
			WillReturnError(errors.New("connection refused"))

		repo := postgres.NewAccountRepository(mock)
		_, err := repo.TopByScore(ctx, 10)

		require.Error(t, err)
		errutil.AssertErrorCode(t, err, "ACCOUNT_TOP_BY_SCORE_FAILED")
	})
}
