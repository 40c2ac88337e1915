// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

// Package postgres implements the auth repositories using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quizhub/quizhub/internal/auth"
)

// Queryer is the subset of pgxpool.Pool the repository needs. Satisfied
// by *pgxpool.Pool and by pgxmock in tests.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	db Queryer
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(db Queryer) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.Account) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (
			id, username, password_digest, high_score, games_played,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		account.ID.String(),
		account.Username,
		account.PasswordDigest,
		account.HighScore,
		account.GamesPlayed,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return oops.Code("ACCOUNT_DUPLICATE").
				With("username", account.Username).
				Wrap(auth.ErrDuplicateUsername)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("username", account.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, password_digest, high_score, games_played,
		       created_at, updated_at
		FROM accounts
		WHERE id = $1
	`, id.String())

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByUsername retrieves an account by username (case-insensitive).
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*auth.Account, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, username, password_digest, high_score, games_played,
		       created_at, updated_at
		FROM accounts
		WHERE LOWER(username) = LOWER($1)
	`, username)

	account, err := r.scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_USERNAME_FAILED").
			With("operation", "get account by username").
			With("username", username).
			Wrap(err)
	}
	return account, nil
}

// UpdateScoreIfHigher sets the high score only when newScore exceeds
// the stored one. The comparison happens in the database so concurrent
// submissions cannot regress the score.
func (r *AccountRepository) UpdateScoreIfHigher(ctx context.Context, username string, newScore int) (*auth.Account, bool, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE accounts
		SET high_score = $2, updated_at = $3
		WHERE LOWER(username) = LOWER($1) AND high_score < $2
		RETURNING id, username, password_digest, high_score, games_played,
		          created_at, updated_at
	`, username, newScore, time.Now())

	account, err := r.scanAccount(row)
	if err == nil {
		return account, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, oops.Code("ACCOUNT_UPDATE_SCORE_FAILED").
			With("operation", "conditional score update").
			With("username", username).
			Wrap(err)
	}

	// No row updated: either the stored score is higher or the account
	// does not exist. Re-read to tell the two apart.
	account, err = r.GetByUsername(ctx, username)
	if err != nil {
		return nil, false, err
	}
	return account, false, nil
}

// IncrementGamesPlayed adds one to the games-played counter.
func (r *AccountRepository) IncrementGamesPlayed(ctx context.Context, username string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE accounts
		SET games_played = games_played + 1, updated_at = $2
		WHERE LOWER(username) = LOWER($1)
	`, username, time.Now())
	if err != nil {
		return oops.Code("ACCOUNT_INCREMENT_GAMES_FAILED").
			With("operation", "increment games played").
			With("username", username).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("username", username).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// TopByScore returns up to n rows ordered by high score descending,
// ties broken by username.
func (r *AccountRepository) TopByScore(ctx context.Context, n int) ([]auth.LeaderboardRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT username, high_score, created_at
		FROM accounts
		ORDER BY high_score DESC, username ASC
		LIMIT $1
	`, n)
	if err != nil {
		return nil, oops.Code("ACCOUNT_TOP_BY_SCORE_FAILED").
			With("operation", "query top scores").
			With("limit", n).
			Wrap(err)
	}
	defer rows.Close()

	var result []auth.LeaderboardRow
	for rows.Next() {
		var row auth.LeaderboardRow
		if err := rows.Scan(&row.Username, &row.HighScore, &row.CreatedAt); err != nil {
			return nil, oops.Code("ACCOUNT_SCAN_FAILED").
				With("operation", "scan leaderboard row").
				Wrap(err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_TOP_BY_SCORE_FAILED").
			With("operation", "iterate leaderboard rows").
			Wrap(err)
	}
	return result, nil
}

// scanAccount scans a single row into an Account.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *AccountRepository) scanAccount(row pgx.Row) (*auth.Account, error) {
	var (
		idStr          string
		username       string
		passwordDigest string
		highScore      int
		gamesPlayed    int
		createdAt      time.Time
		updatedAt      time.Time
	)

	err := row.Scan(
		&idStr,
		&username,
		&passwordDigest,
		&highScore,
		&gamesPlayed,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		// Propagate pgx.ErrNoRows unchanged for callers to handle with context.
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}

	return &auth.Account{
		ID:             id,
		Username:       username,
		PasswordDigest: passwordDigest,
		HighScore:      highScore,
		GamesPlayed:    gamesPlayed,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}, nil
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
