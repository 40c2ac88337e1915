// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

// Package auth provides account and authentication primitives for QuizHub.
//
// # Domain Types
//
// Account is the persistent player record (username, credential digest,
// high score, games played). It is created through NewAccount, which
// validates the username and digests the password. Direct struct
// initialization bypasses validation and may create invalid state.
//
// # Services
//
// Service orchestrates authentication: it consults the LockoutTracker
// before touching the account directory, compares credential digests,
// and records failures or success back into the tracker. Registration
// and guest login also live here.
//
// # Credential hashing
//
// The default DigestHasher is a single unsalted SHA-256 digest. This is
// a known weakness kept for bit-compatibility with existing stored
// digests; Argon2idHasher is the explicit migration path and must be
// selected in configuration — it is never applied silently.
package auth
