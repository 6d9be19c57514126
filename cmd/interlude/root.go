package main

import (
	"fmt"
	"os"

	"github.com/aretw0/interlude/internal/cli"
	"github.com/aretw0/interlude/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "interlude",
	Short: "Interlude orchestrates human-in-the-loop research sessions",
	Long: `Interlude drives a checkpointed research workflow that pauses for human
feedback, and exposes each conversation as a session over HTTP, MCP or the terminal.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to the configuration file (default "+config.DefaultFile+" if present)")
	rootCmd.PersistentFlags().String("log-level", "", "Override log level (debug, info, warn, error)")
}

// loadConfig reads the configuration named by the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, os.Environ())
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadApp builds the wired application. Logs go to stderr so stdout stays
// free for conversation output and JSON-RPC.
func loadApp(cmd *cobra.Command) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := cli.NewLogger(*cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	return cli.Build(*cfg, logger)
}
