package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/smith3v/quizsync/pkg/config"
	"github.com/smith3v/quizsync/pkg/progress"
	"github.com/smith3v/quizsync/pkg/store"
	"github.com/spf13/cobra"
)

var progressCmd = &cobra.Command{
	Use:   "progress",
	Short: "Show accuracy per theme and study recommendations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.store.Progress(ctx)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintln(cmd.OutOrStdout(), "No finished simulations yet.")
			return nil
		}
		if err != nil {
			return err
		}
		completed, err := a.store.CompletedSimulations(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Simulations: %d, answered: %d, accuracy: %.1f%%, streak: %d day(s), trend: %s\n",
			p.TotalSimulations, p.TotalQuestionsAnswered, p.OverallAccuracy, p.Streak, p.Trends.OverallTrend)
		themes := lo.Keys(p.ByTheme)
		sort.Strings(themes)
		for _, theme := range themes {
			data := p.ByTheme[theme]
			fmt.Fprintf(out, "  %-20s %5.1f%% of %d (%s)\n", theme, data.Accuracy, data.TotalAttempts, data.Trend)
		}

		if top := progress.TopErrorThemes(completed); len(top) > 0 {
			fmt.Fprintln(out, "Most errors:")
			for _, e := range top {
				fmt.Fprintf(out, "  %-20s %d of %d\n", e.Theme, e.Errors, e.Total)
			}
		}
		if recs := progress.Recommendations(*p); len(recs) > 0 {
			fmt.Fprintln(out, "Recommendations:")
			for _, rec := range recs {
				fmt.Fprintf(out, "  [%s] %s. %s.\n", rec.Kind, rec.Message, rec.SuggestedAction)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(progressCmd)
}
