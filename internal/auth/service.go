// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/quizhub/quizhub/internal/clock"
)

// Service provides authentication and registration operations.
type Service struct {
	accounts AccountRepository
	hasher   CredentialHasher
	lockout  *LockoutTracker
	clock    clock.Clock
}

// NewService creates a new Service.
func NewService(accounts AccountRepository, hasher CredentialHasher, lockout *LockoutTracker, clk clock.Clock) *Service {
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		lockout:  lockout,
		clock:    clk,
	}
}

// Authenticate decides a login attempt for username.
//
// The lockout check runs first; a locked account never reaches the
// directory. A username the directory does not know is a distinct
// outcome from a wrong password and never counts toward lockout.
//
// Error codes: AUTH_ACCOUNT_LOCKED (remaining_seconds),
// AUTH_USER_NOT_FOUND, AUTH_INVALID_PASSWORD (attempts_left),
// AUTH_DIRECTORY_UNAVAILABLE.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	check := s.lockout.Check(username)
	if !check.Allowed {
		return nil, oops.Code("AUTH_ACCOUNT_LOCKED").
			With("remaining_seconds", check.RemainingSeconds).
			Errorf("account is temporarily locked")
	}

	account, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, oops.Code("AUTH_USER_NOT_FOUND").
				With("username", username).
				Errorf("unknown username")
		}
		return nil, oops.Code("AUTH_DIRECTORY_UNAVAILABLE").
			With("operation", "get account by username").
			Wrap(err)
	}

	valid, err := s.hasher.Verify(password, account.PasswordDigest)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify credential").
			Wrap(err)
	}

	if !valid {
		failure := s.lockout.RecordFailure(username)
		if failure.LockedNow {
			return nil, oops.Code("AUTH_ACCOUNT_LOCKED").
				With("remaining_seconds", failure.RemainingSeconds).
				Errorf("account is temporarily locked")
		}
		return nil, oops.Code("AUTH_INVALID_PASSWORD").
			With("attempts_left", failure.AttemptsLeft).
			Errorf("invalid password")
	}

	s.lockout.RecordSuccess(username)
	return account, nil
}

// Register creates a new account with a zero score and games-played
// count.
//
// The existing-username check and the insert are not atomic; two
// concurrent registrations of the same username can both pass the
// check. The directory's unique constraint catches the loser, which is
// mapped to the same AUTH_USERNAME_TAKEN outcome.
func (s *Service) Register(ctx context.Context, username, password string) (*Account, error) {
	account, err := NewAccount(username, password, s.hasher, s.clock.Now())
	if err != nil {
		return nil, err
	}

	_, err = s.accounts.GetByUsername(ctx, username)
	if err == nil {
		return nil, oops.Code("AUTH_USERNAME_TAKEN").
			With("username", username).
			Errorf("username already exists")
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, oops.Code("AUTH_DIRECTORY_UNAVAILABLE").
			With("operation", "check existing username").
			Wrap(err)
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrDuplicateUsername) {
			return nil, oops.Code("AUTH_USERNAME_TAKEN").
				With("username", username).
				Errorf("username already exists")
		}
		return nil, oops.Code("AUTH_DIRECTORY_UNAVAILABLE").
			With("operation", "insert account").
			Wrap(err)
	}

	return account, nil
}

// GuestLogin produces a guest identity. Guests never touch the
// directory or the lockout tracker.
func (s *Service) GuestLogin() Guest {
	return NewGuest()
}
