package main

import (
	"github.com/aretw0/interlude/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the session API over HTTP (/chat_initiate, /chat-continue, /sessions).
With --mcp, the MCP SSE transport is served on a second address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = app.Config.Addr
		}
		mcpAddr, _ := cmd.Flags().GetString("mcp")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		if err := cli.Serve(ctx, app, addr, mcpAddr); err != nil {
			return err
		}
		app.Logger.Info("Server stopped gracefully", "signal", ctx.Signal())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Address to listen on (defaults to the configured addr)")
	serveCmd.Flags().String("mcp", "", "Also serve MCP over SSE on this address")
}
