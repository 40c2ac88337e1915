// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package auth

import (
	"context"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Username validation constraints.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
)

// usernameRegex matches usernames that:
// - Start with a letter (a-z, A-Z)
// - Contain only letters, numbers, and underscores
var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Account represents a registered player account. HighScore and
// GamesPlayed are monotonically non-decreasing once accepted.
type Account struct {
	ID             ulid.ULID
	Username       string
	PasswordDigest string
	HighScore      int
	GamesPlayed    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewAccount creates a validated Account with the digest of password,
// zero score and games played, and the given creation time.
func NewAccount(username, password string, hasher CredentialHasher, now time.Time) (*Account, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}
	digest, err := hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	return &Account{
		ID:             ulid.Make(),
		Username:       username,
		PasswordDigest: digest,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ValidateUsername validates a username against rules.
// Username requirements:
// - Length: MinUsernameLength to MaxUsernameLength characters
// - Must start with a letter
// - Can contain only letters (a-z, A-Z), numbers (0-9), and underscores (_)
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code("AUTH_INVALID_USERNAME").Errorf("username cannot be empty")
	}
	if len(username) < MinUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("min", MinUsernameLength).
			Errorf("username must be at least %d characters", MinUsernameLength)
	}
	if len(username) > MaxUsernameLength {
		return oops.Code("AUTH_INVALID_USERNAME").
			With("max", MaxUsernameLength).
			Errorf("username must be at most %d characters", MaxUsernameLength)
	}
	if !usernameRegex.MatchString(username) {
		return oops.Code("AUTH_INVALID_USERNAME").
			Errorf("username must start with a letter and contain only letters, numbers, and underscores")
	}
	return nil
}

// LeaderboardRow is one entry of a top-N-by-score query.
type LeaderboardRow struct {
	Username  string    `json:"username"`
	HighScore int       `json:"high_score"`
	CreatedAt time.Time `json:"registered_at"`
}

// AccountRepository manages account persistence (the account directory).
type AccountRepository interface {
	// Create stores a new account. Returns ErrDuplicateUsername if the
	// username is already taken.
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Account, error)

	// GetByUsername retrieves an account by username (case-insensitive).
	GetByUsername(ctx context.Context, username string) (*Account, error)

	// UpdateScoreIfHigher sets the high score for username only when
	// newScore exceeds the stored one. Returns the current record and
	// whether it was updated.
	UpdateScoreIfHigher(ctx context.Context, username string, newScore int) (*Account, bool, error)

	// IncrementGamesPlayed adds one to the games-played counter.
	IncrementGamesPlayed(ctx context.Context, username string) error

	// TopByScore returns up to n rows ordered by high score descending.
	TopByScore(ctx context.Context, n int) ([]LeaderboardRow, error)
}
