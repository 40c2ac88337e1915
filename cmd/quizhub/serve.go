// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/quizhub/quizhub/internal/auth"
	authpg "github.com/quizhub/quizhub/internal/auth/postgres"
	"github.com/quizhub/quizhub/internal/clock"
	"github.com/quizhub/quizhub/internal/config"
	"github.com/quizhub/quizhub/internal/core"
	"github.com/quizhub/quizhub/internal/gateway"
	"github.com/quizhub/quizhub/internal/leaderboard"
	"github.com/quizhub/quizhub/internal/logging"
	"github.com/quizhub/quizhub/internal/observability"
	"github.com/quizhub/quizhub/internal/quiz"
	quizpg "github.com/quizhub/quizhub/internal/quiz/postgres"
	"github.com/quizhub/quizhub/internal/session"
	"github.com/quizhub/quizhub/internal/store"
)

// Default values for serve command flags.
const (
	defaultListenAddr  = ":4200"
	defaultMetricsAddr = "127.0.0.1:9100"
	defaultLogFormat   = "json"
	defaultLogLevel    = "info"
	defaultTokenTTL    = int64(24 * 60 * 60)

	shutdownTimeout = 5 * time.Second

	// Lockout-tracker sweep cadence and eviction age.
	lockoutSweepInterval = 10 * time.Minute
	lockoutIdleEviction  = time.Hour
)

// newServeCmd creates the serve subcommand with all flags configured.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the QuizHub server",
		Long: `Start the QuizHub server: the client gateway, the metrics and
health endpoints, and the background maintenance loops.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	// Register flags. Secrets default from the environment so they stay
	// out of shell history.
	cmd.Flags().String("listen-addr", defaultListenAddr, "client listen address")
	cmd.Flags().String("metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection URL")
	cmd.Flags().String("redis-addr", "", "Redis address for the leaderboard cache (empty = disabled)")
	cmd.Flags().String("hasher", config.HasherDigest, "password hasher (digest or argon2id)")
	cmd.Flags().String("token-secret", os.Getenv("QUIZHUB_TOKEN_SECRET"), "HS256 secret for resume tokens (empty = disabled)")
	cmd.Flags().Int64("token-ttl", defaultTokenTTL, "resume token lifetime in seconds")
	cmd.Flags().String("log-format", defaultLogFormat, "log format (json or text)")
	cmd.Flags().String("log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	cmd.Flags().Bool("auto-migrate", false, "run pending migrations before serving")

	return cmd
}

// runServe wires the services together and runs until a shutdown
// signal arrives.
func runServe(ctx context.Context, cfg *config.Config, cmd *cobra.Command) error {
	logging.SetDefault("quizhub", version, cfg.LogFormat, logging.ParseLevel(cfg.LogLevel))

	slog.Info("starting server",
		"listen_addr", cfg.ListenAddr,
		"metrics_addr", cfg.MetricsAddr,
		"hasher", cfg.Hasher,
		"cache", cfg.CacheEnabled(),
		"resume", cfg.ResumeEnabled(),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if autoMigrate, _ := cmd.Flags().GetBool("auto-migrate"); autoMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	pool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	accounts := authpg.NewAccountRepository(pool)
	questions := quizpg.NewQuestionRepository(pool)
	clk := clock.New()

	var hasher auth.CredentialHasher
	switch cfg.Hasher {
	case config.HasherArgon2id:
		hasher = auth.NewArgon2idHasher()
	default:
		hasher = auth.NewDigestHasher()
	}

	lockout := auth.NewLockoutTracker(clk)
	authSvc := auth.NewService(accounts, hasher, lockout, clk)

	var tokens *auth.TokenIssuer
	if cfg.ResumeEnabled() {
		tokens, err = auth.NewTokenIssuer([]byte(cfg.TokenSecret), cfg.TokenTTL, clk)
		if err != nil {
			return fmt.Errorf("failed to configure resume tokens: %w", err)
		}
	}

	var cache *redis.Client
	if cfg.CacheEnabled() {
		cache = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if closeErr := cache.Close(); closeErr != nil {
				slog.Warn("error closing redis client", "error", closeErr)
			}
		}()
	}

	broadcaster := core.NewBroadcaster()
	presence := core.NewPresenceBroadcaster(broadcaster)
	quizSvc := quiz.NewService(questions, accounts)
	lb := leaderboard.NewService(accounts, cache, leaderboard.DefaultTTL, slog.Default())

	// Start observability server if configured
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool {
			return pool.Ping(ctx) == nil
		})
		metrics = obsServer.Metrics()
		obsErrCh, startErr := obsServer.Start()
		if startErr != nil {
			return fmt.Errorf("failed to start observability server: %w", startErr)
		}
		go func() {
			if obsErr := <-obsErrCh; obsErr != nil {
				slog.Error("observability server error", "error", obsErr)
			}
		}()
	}

	// The registry's liveness check points at the gateway server, which
	// needs the registry in its deps; the closure breaks the cycle.
	var gw *gateway.Server
	registry := session.NewRegistry(presence.Notify, session.WithLivenessCheck(func(connID ulid.ULID) bool {
		return gw.IsLive(connID)
	}))

	gw = gateway.NewServer(cfg.ListenAddr, gateway.Deps{
		Auth:        authSvc,
		Tokens:      tokens,
		Registry:    registry,
		Quiz:        quizSvc,
		Leaderboard: lb,
		Broadcaster: broadcaster,
		Metrics:     metrics,
	})

	// Sweep idle lockout entries so the tracker cannot grow unbounded.
	go func() {
		ticker := time.NewTicker(lockoutSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := lockout.Sweep(lockoutIdleEviction); removed > 0 {
					slog.Debug("swept idle lockout entries", "removed", removed)
				}
			}
		}
	}()

	gwErrCh := make(chan error, 1)
	go func() {
		gwErrCh <- gw.Run(ctx)
	}()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	cmd.Println("QuizHub server started")

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	case err := <-gwErrCh:
		if err != nil {
			return fmt.Errorf("gateway server failed: %w", err)
		}
	}

	// Graceful shutdown
	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// runMigrations applies all pending migrations.
func runMigrations(databaseURL string) error {
	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("error closing migrator", "error", closeErr)
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
