package main

import (
	"fmt"

	"github.com/smith3v/quizsync/pkg/config"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one full sync with the remote store",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		syncErr := a.engine.FullSync(cmd.Context())
		snap := a.engine.Snapshot()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "status:       %s\n", snap.Status)
		fmt.Fprintf(out, "last success: %s\n", formatTime(snap.LastSuccess))
		if snap.LastError != "" {
			fmt.Fprintf(out, "last error:   %s (%s)\n", snap.LastError, formatTime(snap.LastErrorAt))
		}
		return syncErr
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
