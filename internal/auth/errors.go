// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateUsername is returned when an insert collides with an
// existing username.
var ErrDuplicateUsername = errors.New("username already exists")
