package main

import (
	"github.com/aretw0/interlude/internal/cli"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the workflow as a Mermaid flowchart",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if wf, _ := cmd.Flags().GetString("workflow"); wf != "" {
			cfg.Engine.Workflow = wf
		}
		return cli.PrintGraph(cfg.Engine, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("workflow", "", "Workflow file (defaults to the configured one)")
}
