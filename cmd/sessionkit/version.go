package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/sessionkit"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sessionkit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sessionkit version %s\n", strings.TrimSpace(sessionkit.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
