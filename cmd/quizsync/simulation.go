package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/smith3v/quizsync/pkg/config"
	"github.com/smith3v/quizsync/pkg/db"
	"github.com/smith3v/quizsync/pkg/simulation"
	"github.com/spf13/cobra"
)

var simulationCmd = &cobra.Command{
	Use:     "simulation",
	Aliases: []string{"sim"},
	Short:   "Take a practice simulation",
}

var simulationStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a simulation and print its questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts simulation.Options
		opts.Count, _ = cmd.Flags().GetInt("count")
		opts.Theme, _ = cmd.Flags().GetString("theme")
		opts.Difficulty, _ = cmd.Flags().GetInt("difficulty")
		opts.Tier, _ = cmd.Flags().GetInt("tier")
		opts.Adaptive, _ = cmd.Flags().GetBool("adaptive")
		opts.Timed, _ = cmd.Flags().GetBool("timed")

		ctx := cmd.Context()
		a, err := openApp(ctx, config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		sim, err := a.sims.Start(ctx, opts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Simulation %s, %d questions\n", sim.ID, sim.QuestionCount)
		for i, sq := range sim.Questions {
			q, err := a.store.Question(ctx, sq.QuestionID)
			if err != nil {
				return err
			}
			printQuestion(out, i+1, q)
		}
		return nil
	},
}

var simulationAnswerCmd = &cobra.Command{
	Use:   "answer <simulation-id> <question-id> <answer>",
	Short: "Answer one question",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		spent, _ := cmd.Flags().GetDuration("time")
		ctx := cmd.Context()
		a, err := openApp(ctx, config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		sim, err := a.sims.Answer(ctx, args[0], args[1], args[2], spent)
		if err != nil {
			return err
		}
		for _, sq := range sim.Questions {
			if sq.QuestionID == args[1] && sq.IsCorrect != nil {
				verdict := "wrong"
				if *sq.IsCorrect {
					verdict = "correct"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d/%d answered)\n",
					args[1], verdict, sim.Stats.Answered, sim.Stats.TotalQuestions)
			}
		}
		return nil
	},
}

var simulationFinishCmd = &cobra.Command{
	Use:   "finish <simulation-id>",
	Short: "Finish a simulation and update progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, config.AppConfig)
		if err != nil {
			return err
		}
		defer a.Close()

		sim, err := a.sims.Finish(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Score: %d/%d correct (%.0f%%), %d unanswered\n",
			sim.Stats.Correct, sim.Stats.TotalQuestions, sim.Stats.Accuracy,
			sim.Stats.TotalQuestions-sim.Stats.Answered)
		for _, theme := range sortedThemes(sim.Stats.ByTheme) {
			score := sim.Stats.ByTheme[theme]
			fmt.Fprintf(out, "  %-20s %d/%d\n", theme, score.Correct, score.Total)
		}
		return nil
	},
}

func printQuestion(out io.Writer, n int, q *db.Question) {
	fmt.Fprintf(out, "\n%d. [%s] %s\n   %s\n", n, q.ID, q.Theme, q.Statement)
	labels := make([]string, 0, len(q.Options))
	for label := range q.Options {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(out, "   %s) %s\n", label, q.Options[label])
	}
}

func sortedThemes(m map[string]db.ThemeScore) []string {
	themes := make([]string, 0, len(m))
	for theme := range m {
		themes = append(themes, theme)
	}
	sort.Strings(themes)
	return themes
}

func init() {
	rootCmd.AddCommand(simulationCmd)
	simulationCmd.AddCommand(simulationStartCmd, simulationAnswerCmd, simulationFinishCmd)

	simulationStartCmd.Flags().Int("count", simulation.DefaultQuestionCount, "number of questions")
	simulationStartCmd.Flags().String("theme", "", "only draw questions from this theme")
	simulationStartCmd.Flags().Int("difficulty", 0, "only draw questions of this difficulty")
	simulationStartCmd.Flags().Int("tier", 0, "only draw questions of this tier")
	simulationStartCmd.Flags().Bool("adaptive", false, "bias the draw toward weak themes and unanswered questions")
	simulationStartCmd.Flags().Bool("timed", false, "mark the simulation as a timed exam")
	simulationAnswerCmd.Flags().Duration("time", 0, "time spent on the question")
}
