package main

import (
	"github.com/aretw0/interlude/internal/cli"
	"github.com/aretw0/interlude/pkg/ports"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage persisted sessions",
	Long:  `List, inspect, and remove sessions in the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store ports.SessionStore) error {
			return cli.ListSessions(cmd.Context(), store, cmd.OutOrStdout())
		})
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Print the stored record of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store ports.SessionStore) error {
			return cli.InspectSession(cmd.Context(), store, args[0], cmd.OutOrStdout())
		})
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Delete sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(store ports.SessionStore) error {
			return cli.RemoveSessions(cmd.Context(), store, args, cmd.OutOrStdout())
		})
	},
}

func withStore(cmd *cobra.Command, fn func(ports.SessionStore) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, closer, err := cli.OpenStore(*cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	return fn(store)
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}
