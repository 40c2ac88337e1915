// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

// Package leaderboard serves top-N-by-score queries with an optional
// Redis cache in front of the account directory.
package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/quizhub/quizhub/internal/auth"
)

// DefaultTTL is how long a cached leaderboard stays fresh. Staleness
// of a few seconds is acceptable for a scoreboard display.
const DefaultTTL = 15 * time.Second

// cacheKeyPrefix namespaces leaderboard keys in a shared Redis.
const cacheKeyPrefix = "quizhub:leaderboard:"

// Service answers leaderboard queries. The cache client may be nil, in
// which case every read goes to the directory.
type Service struct {
	accounts auth.AccountRepository
	cache    *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService creates a leaderboard Service. cache may be nil to
// disable caching.
func NewService(accounts auth.AccountRepository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		accounts: accounts,
		cache:    cache,
		ttl:      ttl,
		logger:   logger,
	}
}

// Top returns up to n rows ordered by high score descending. Cache
// failures degrade to a direct directory read; only a directory
// failure is surfaced to the caller.
func (s *Service) Top(ctx context.Context, n int) ([]auth.LeaderboardRow, error) {
	if n <= 0 {
		return nil, oops.Code("LEADERBOARD_INVALID_LIMIT").
			With("limit", n).
			Errorf("limit must be positive")
	}

	key := cacheKey(n)
	if s.cache != nil {
		data, err := s.cache.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var rows []auth.LeaderboardRow
			if err := json.Unmarshal(data, &rows); err == nil {
				return rows, nil
			}
			// Corrupt cache entry: fall through to the directory.
			s.logger.Warn("discarding corrupt leaderboard cache entry", "key", key)
		case !errors.Is(err, redis.Nil):
			s.logger.Warn("leaderboard cache read failed", "key", key, "error", err)
		}
	}

	rows, err := s.accounts.TopByScore(ctx, n)
	if err != nil {
		return nil, oops.Code("LEADERBOARD_QUERY_FAILED").
			With("operation", "top by score").
			With("limit", n).
			Wrap(err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(rows); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
				s.logger.Warn("leaderboard cache write failed", "key", key, "error", err)
			}
		}
	}

	return rows, nil
}

// Invalidate drops all cached leaderboard sizes. Called after a score
// improvement so the next read sees it immediately instead of after
// TTL expiry. Best effort.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}

	iter := s.cache.Scan(ctx, 0, cacheKeyPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		s.logger.Warn("leaderboard cache scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn("leaderboard cache invalidation failed", "error", err)
	}
}

func cacheKey(n int) string {
	return fmt.Sprintf("%stop:%d", cacheKeyPrefix, n)
}
