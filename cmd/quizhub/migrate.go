// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/quizhub/quizhub/internal/store"
)

// migrateConfig holds configuration for the migrate command.
type migrateConfig struct {
	down bool
}

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd() *cobra.Command {
	cfg := &migrateConfig{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Run all pending database migrations against the PostgreSQL database.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&cfg.down, "down", false, "roll back all migrations instead of applying them")

	return cmd
}

func runMigrate(cmd *cobra.Command, cfg *migrateConfig) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "create migrator").Wrap(err)
	}
	defer func() { _ = migrator.Close() }()

	if cfg.down {
		cmd.Println("Rolling back migrations...")
		if err := migrator.Down(); err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
		}
		cmd.Println("Rollback completed successfully")
		return nil
	}

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read schema version").Wrap(err)
	}
	cmd.Printf("Migrations completed successfully (version %d, dirty: %t)\n", version, dirty)
	return nil
}
