package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/interlude"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of interlude",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "interlude version %s\n", strings.TrimSpace(interlude.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
