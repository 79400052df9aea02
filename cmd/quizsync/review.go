package main

import (
	"fmt"
	"strconv"

	"github.com/smith3v/quizsync/pkg/config"
	"github.com/smith3v/quizsync/pkg/srs"
	"github.com/spf13/cobra"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List flashcards due for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := cmd.Context()
		a, err := openApp(ctx, config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.reviews.Stats(ctx)
		if err != nil {
			return err
		}
		due, err := a.reviews.DueCards(ctx, limit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%d due, %d learned, %d tracked of %d questions\n",
			stats.Due, stats.Learned, stats.Tracked, stats.TotalQuestions)
		for _, card := range due {
			if q, err := a.store.Question(ctx, card.QuestionID); err == nil {
				fmt.Fprintf(out, "- %s [%s] %s\n", card.QuestionID, q.Theme, q.Statement)
				continue
			}
			if custom, err := a.store.CustomFlashcard(ctx, card.QuestionID); err == nil {
				fmt.Fprintf(out, "- %s [%s] %s\n", card.QuestionID, custom.Theme, custom.Front)
				continue
			}
			fmt.Fprintf(out, "- %s (removed card)\n", card.QuestionID)
		}
		return nil
	},
}

var reviewGradeCmd = &cobra.Command{
	Use:   "grade <card-id> <0|3|4|5>",
	Short: "Grade a flashcard and reschedule it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("grade must be a number: %w", err)
		}
		grade, err := srs.ParseGrade(value)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		a, err := openApp(ctx, config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		record, err := a.reviews.SubmitReview(ctx, args[0], grade)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Next review of %s in %d day(s), on %s.\n",
			record.QuestionID, record.Interval, record.DueAt.Local().Format("2006-01-02"))
		return nil
	},
}

var reviewAddCmd = &cobra.Command{
	Use:   "add <theme> <front> <back>",
	Short: "Write a custom flashcard",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		subtheme, _ := cmd.Flags().GetString("subtheme")
		ctx := cmd.Context()
		a, err := openApp(ctx, config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		card, err := a.reviews.AddCustomCard(ctx, args[0], subtheme, args[1], args[2])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s, due now.\n", card.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewGradeCmd, reviewAddCmd)
	reviewAddCmd.Flags().String("subtheme", "", "optional subtheme")
	reviewCmd.Flags().Int("limit", 20, "maximum number of due cards to list")
}
