package main

import (
	"encoding/json"
	"fmt"
	"os"

	sessionhttp "github.com/aretw0/sessionkit/pkg/adapters/http"
	"github.com/aretw0/sessionkit/pkg/attributes"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage stored sessions",
	Long:  `List, inspect, and remove the sessions held by the configured store.`,
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored sessions",
	Run: func(cmd *cobra.Command, args []string) {
		kit := mustKit(cmd, loadConfig(cmd), nil)
		defer kit.Close()

		ids, err := kit.ListSessions(cmd.Context())
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error listing sessions: %v\n", err)
			os.Exit(1)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return
		}
		fmt.Fprintln(out, "Sessions:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
	},
}

var sessionInspectCmd = &cobra.Command{
	Use:   "inspect <session-id>",
	Short: "Show the metadata and attributes of a session",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig(cmd)
		kit := mustKit(cmd, cfg, nil)
		defer kit.Close()

		id := args[0]
		s, err := kit.InspectSession(cmd.Context(), id)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error loading session '%s': %v\n", id, err)
			os.Exit(1)
		}
		if s == nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Session '%s' not found\n", id)
			os.Exit(1)
		}

		masker, err := attributes.NewMasker(cfg.Session.Mask)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
			os.Exit(1)
		}
		data, err := json.MarshalIndent(sessionhttp.NewView(s.ID(), s.MetaData(), s.Attributes(), masker), "", "  ")
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error marshaling session: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	},
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>...",
	Short: "Invalidate one or more sessions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		kit := mustKit(cmd, loadConfig(cmd), nil)
		defer kit.Close()
		hasError := false

		for _, id := range args {
			removed, err := kit.RemoveSession(cmd.Context(), id)
			switch {
			case err != nil:
				fmt.Fprintf(cmd.ErrOrStderr(), "Error removing '%s': %v\n", id, err)
				hasError = true
			case !removed:
				fmt.Fprintf(cmd.ErrOrStderr(), "Session '%s' not found\n", id)
				hasError = true
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
			}
		}

		if hasError {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionInspectCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}
