// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

// Package store provides database plumbing: the connection pool and
// schema migrations.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Startup connectivity retry policy. The database frequently comes up
// a moment after the service under orchestrated deployments.
const (
	pingRetryBase = 500 * time.Millisecond
	pingRetryMax  = 5
)

// NewPool connects a pgx pool and verifies connectivity, retrying the
// initial ping with fibonacci backoff. A database that stays
// unreachable fails startup rather than surfacing per-request.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONFIG_INVALID").
			With("operation", "parse database url").
			Wrap(err)
	}

	backoff := retry.WithMaxRetries(pingRetryMax, retry.NewFibonacci(pingRetryBase))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if pingErr := pool.Ping(ctx); pingErr != nil {
			slog.Debug("database ping failed, retrying", "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").
			With("operation", "ping database").
			Wrap(err)
	}

	return pool, nil
}
