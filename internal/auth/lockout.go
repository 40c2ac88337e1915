// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package auth

import (
	"sync"
	"time"

	"github.com/quizhub/quizhub/internal/clock"
)

// Lockout policy configuration.
const (
	// LockoutThreshold is the number of consecutive failures that
	// triggers a lockout. Every further multiple escalates it.
	LockoutThreshold = 3

	// LockoutBaseDuration is the duration of the first lockout. It
	// doubles each time the threshold is crossed again: 30s, 60s,
	// 120s, 240s, ...
	LockoutBaseDuration = 30 * time.Second
)

// CheckResult is the outcome of a pre-authentication lockout check.
type CheckResult struct {
	// Allowed is true when the attempt may proceed to the directory.
	Allowed bool

	// RemainingSeconds is the time until the lockout expires, rounded
	// up. Only meaningful when Allowed is false.
	RemainingSeconds int
}

// FailureResult is the outcome of recording a failed attempt.
type FailureResult struct {
	// LockedNow is true when this failure crossed the threshold and
	// locked the account.
	LockedNow bool

	// RemainingSeconds is the full lockout duration in seconds when
	// LockedNow is true.
	RemainingSeconds int

	// AttemptsLeft is the number of attempts remaining in the current
	// threshold cycle when LockedNow is false. Always 1 or 2.
	AttemptsLeft int
}

// attemptState tracks login failures for one username. Entries are
// created lazily on first failure and live for the process lifetime
// unless swept.
type attemptState struct {
	failures    int
	lockedUntil time.Time // zero when not locked
	lastFailure time.Time
}

// LockoutTracker holds per-username login attempt state in memory.
// State is process-lifetime only; a restart clears all lockouts.
// All methods are safe for concurrent use.
type LockoutTracker struct {
	mu       sync.Mutex
	clock    clock.Clock
	attempts map[string]*attemptState
}

// NewLockoutTracker creates a new LockoutTracker.
func NewLockoutTracker(clk clock.Clock) *LockoutTracker {
	return &LockoutTracker{
		clock:    clk,
		attempts: make(map[string]*attemptState),
	}
}

// LockoutDurationFor returns the lockout duration for the nth lockout
// (1-based): LockoutBaseDuration doubled per prior lockout.
func LockoutDurationFor(lockCount int) time.Duration {
	return LockoutBaseDuration << (lockCount - 1)
}

// Check evaluates whether an authentication attempt for username may
// proceed. An expired lockout is cleared and the failure counter reset.
// Usernames with no recorded failures are always allowed. Check never
// increments the failure counter.
func (t *LockoutTracker) Check(username string) CheckResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.attempts[username]
	if !ok {
		return CheckResult{Allowed: true}
	}

	if !state.lockedUntil.IsZero() {
		now := t.clock.Now()
		if now.Before(state.lockedUntil) {
			return CheckResult{
				Allowed:          false,
				RemainingSeconds: ceilSeconds(state.lockedUntil.Sub(now)),
			}
		}
		// Lock expired: clear it and start a fresh cycle.
		state.lockedUntil = time.Time{}
		state.failures = 0
	}

	return CheckResult{Allowed: true}
}

// RecordFailure records a failed authentication attempt for username.
// Callers must only invoke this after the directory confirmed the
// username exists and the credential did not match; unknown usernames
// never count toward lockout.
func (t *LockoutTracker) RecordFailure(username string) FailureResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.attempts[username]
	if !ok {
		state = &attemptState{}
		t.attempts[username] = state
	}

	now := t.clock.Now()
	state.failures++
	state.lastFailure = now

	if state.failures%LockoutThreshold == 0 {
		lockCount := state.failures / LockoutThreshold
		duration := LockoutDurationFor(lockCount)
		state.lockedUntil = now.Add(duration)
		return FailureResult{
			LockedNow:        true,
			RemainingSeconds: ceilSeconds(duration),
		}
	}

	return FailureResult{
		AttemptsLeft: LockoutThreshold - state.failures%LockoutThreshold,
	}
}

// RecordSuccess resets the failure counter and clears any lockout for
// username.
func (t *LockoutTracker) RecordSuccess(username string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.attempts, username)
}

// Sweep evicts entries that are not locked and have not failed within
// idleFor. It exists to bound memory growth in long-running processes;
// evicting an idle entry is observably identical to it never having
// failed. Returns the number of entries removed.
func (t *LockoutTracker) Sweep(idleFor time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	removed := 0
	for username, state := range t.attempts {
		if !state.lockedUntil.IsZero() && now.Before(state.lockedUntil) {
			continue
		}
		if now.Sub(state.lastFailure) >= idleFor {
			delete(t.attempts, username)
			removed++
		}
	}
	return removed
}

// ceilSeconds converts a duration to whole seconds, rounding up.
func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
