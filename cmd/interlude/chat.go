package main

import (
	"os"

	"github.com/aretw0/interlude/internal/cli"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [topic]",
	Short: "Run a research session in the terminal",
	Long: `Starts or resumes a session interactively. Type "exit" or press Ctrl+C to
leave; the session stays resumable with the same --session.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		opts := cli.ChatOptions{}
		opts.SessionID, _ = cmd.Flags().GetString("session")
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Quiet, _ = cmd.Flags().GetBool("quiet")
		if len(args) > 0 {
			opts.Topic = args[0]
		}

		return cli.RunChat(cmd.Context(), app, opts, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringP("session", "s", "", "Session ID to start or resume (generated when empty)")
	chatCmd.Flags().Bool("json", false, "Exchange newline-delimited JSON on stdin/stdout")
	chatCmd.Flags().BoolP("quiet", "q", false, "Suppress the banner and system messages")
}
