// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package main

import (
	"context"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/quizhub/quizhub/internal/quiz"
	quizpg "github.com/quizhub/quizhub/internal/quiz/postgres"
	"github.com/quizhub/quizhub/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	file    string
	force   bool
	timeout time.Duration
}

// seedFile is the YAML shape of a question bank file.
type seedFile struct {
	Questions []seedQuestion `yaml:"questions"`
}

type seedQuestion struct {
	Prompt  string   `yaml:"prompt"`
	Options []string `yaml:"options"`
	Answer  int      `yaml:"answer"`
	Points  int      `yaml:"points"`
}

// newSeedCmd creates the seed subcommand.
func newSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load a question bank into the database",
		Long: `Loads questions from a YAML file into the question bank.
Skipped when the bank already has questions, unless --force is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSeed(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.file, "file", "", "YAML question bank file (required)")
	cmd.Flags().BoolVar(&cfg.force, "force", false, "insert even when the bank is not empty")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runSeed(cmd *cobra.Command, cfg *seedConfig) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	bank, err := loadSeedFile(cfg.file)
	if err != nil {
		return err
	}
	if len(bank.Questions) == 0 {
		return oops.Code("SEED_FAILED").
			With("file", cfg.file).
			Errorf("seed file contains no questions")
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Connecting to database...")
	pool, err := store.NewPool(ctx, databaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	questions := quizpg.NewQuestionRepository(pool)

	count, err := questions.Count(ctx)
	if err != nil {
		return oops.Code("SEED_FAILED").With("operation", "count questions").Wrap(err)
	}
	if count > 0 && !cfg.force {
		cmd.Printf("Question bank already has %d questions, skipping seed (use --force to append)\n", count)
		return nil
	}

	now := time.Now().UTC()
	inserted := 0
	for i, sq := range bank.Questions {
		question, err := quiz.NewQuestion(sq.Prompt, sq.Options, sq.Answer, sq.Points, now)
		if err != nil {
			return oops.Code("SEED_FAILED").
				With("file", cfg.file).
				With("question_index", i).
				Wrap(err)
		}
		if err := questions.Create(ctx, question); err != nil {
			return oops.Code("SEED_FAILED").
				With("operation", "insert question").
				With("question_index", i).
				Wrap(err)
		}
		inserted++
	}

	cmd.Printf("Seeded %d questions\n", inserted)
	return nil
}

// loadSeedFile reads and parses a YAML question bank.
func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("SEED_FAILED").
			With("file", path).
			Wrap(err)
	}

	var bank seedFile
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, oops.Code("SEED_FAILED").
			With("file", path).
			Wrap(err)
	}
	return &bank, nil
}
