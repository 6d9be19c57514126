package main

import (
	"fmt"

	"github.com/aretw0/interlude/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [workflow.yaml]",
	Short: "Validate the configuration and the script workflow",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) > 0 {
			cfg.Engine.Workflow = args[0]
			cfg.Engine.Kind = "script"
		}
		if cfg.Engine.Kind == "script" {
			wf, err := cli.LoadWorkflow(cfg.Engine)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Workflow %q is valid! ✅ (%d steps, gates: %v)\n", wf.Name, len(wf.Steps), wf.Gates())
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
