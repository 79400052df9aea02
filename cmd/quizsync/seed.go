package main

import (
	"fmt"

	"github.com/smith3v/quizsync/pkg/config"
	"github.com/smith3v/quizsync/pkg/dataset"
	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/store"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed [dataset]",
	Short: "Load the question bank into an empty local store",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.AppConfig.Local.Dataset
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no dataset given and local.dataset is not configured")
		}
		res, err := dataset.LoadFile(path)
		if err != nil {
			return err
		}

		gdb, err := db.OpenLocal(config.AppConfig.Local.Path)
		if err != nil {
			return err
		}
		defer db.Close(gdb)
		st := store.New(gdb)

		before, err := st.CountQuestions(cmd.Context())
		if err != nil {
			return err
		}
		if err := st.Initialize(cmd.Context(), res.Questions); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if before > 0 {
			fmt.Fprintf(out, "Question bank already holds %d questions, nothing seeded.\n", before)
			return nil
		}
		fmt.Fprintf(out, "Seeded %d questions (%d rows skipped).\n", len(res.Questions), res.Skipped)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
