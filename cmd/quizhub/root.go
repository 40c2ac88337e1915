package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the QuizHub CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quizhub",
		Short: "QuizHub - a real-time multiplayer quiz server",
		Long: `QuizHub is a real-time multiplayer quiz server with account
registration, brute-force lockout, live presence, chat, and a
persistent leaderboard.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}
