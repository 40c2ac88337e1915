// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

// Package clock provides time operations that can be mocked for testing.
package clock

import "time"

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the system clock.
type RealClock struct{}

// New creates a new RealClock.
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	current time.Time
}

// NewFake creates a Fake clock starting at t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	return f.current
}

// Advance moves the fake clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.current = f.current.Add(d)
}

// Set sets the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.current = t
}
