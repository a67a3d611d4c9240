package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mabquiz/internal/analytics"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show learning statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, err := learnerID(cmd)
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.projection.AggregateStats(commandContext(cmd), learner)
		if err != nil {
			return fmt.Errorf("aggregate stats: %w", err)
		}
		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		}

		fmt.Fprintf(out, "%-10s  %6s  %8s  %8s  %8s  %s\n", "Kind", "Arms", "Attempts", "Correct", "Wrong", "Mean rate")
		fmt.Fprintln(out, strings.Repeat("─", 60))
		for _, row := range []struct {
			name string
			s    analytics.KindStats
		}{{"questions", stats.Questions}, {"topics", stats.Topics}} {
			fmt.Fprintf(out, "%-10s  %6d  %8d  %8d  %8d  %5.1f%%\n",
				row.name, row.s.Count, row.s.Attempts, row.s.Successes, row.s.Failures, row.s.MeanSuccessRate*100)
		}
		return nil
	},
}

var weakCmd = &cobra.Command{
	Use:   "weak",
	Short: "List questions (or topics) the learner keeps getting wrong",
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, err := learnerID(cmd)
		if err != nil {
			return err
		}
		topics, _ := cmd.Flags().GetBool("topics")

		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		minAttempts := e.cfg.Analytics.MinAttempts
		if cmd.Flags().Changed("min-attempts") {
			minAttempts, _ = cmd.Flags().GetInt("min-attempts")
		}
		threshold := e.cfg.Analytics.WeakThreshold
		if cmd.Flags().Changed("threshold") {
			threshold, _ = cmd.Flags().GetFloat64("threshold")
		}

		ctx := commandContext(cmd)
		out := cmd.OutOrStdout()
		if topics {
			rows, err := e.projection.WeakTopics(ctx, learner, minAttempts, threshold)
			if err != nil {
				return fmt.Errorf("weak topics: %w", err)
			}
			printTopics(out, rows)
			return nil
		}

		rows, err := e.projection.WeakQuestions(ctx, learner, minAttempts, threshold)
		if err != nil {
			return fmt.Errorf("weak questions: %w", err)
		}
		if len(rows) == 0 {
			fmt.Fprintln(out, "No weak questions.")
			return nil
		}
		fmt.Fprintf(out, "%-20s  %-24s  %8s  %6s  %9s  %s\n", "Question", "Topic", "Attempts", "Rate", "Posterior", "Avg ms")
		fmt.Fprintln(out, strings.Repeat("─", 90))
		for _, r := range rows {
			fmt.Fprintf(out, "%-20s  %-24s  %8d  %5.1f%%  %9.3f  %.0f\n",
				r.QuestionID, r.TopicKey, r.Attempts, r.SuccessRate*100, r.PosteriorMean, r.MeanResponseTimeMs)
		}
		return nil
	},
}

var bestCmd = &cobra.Command{
	Use:   "best",
	Short: "List the learner's strongest topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, err := learnerID(cmd)
		if err != nil {
			return err
		}

		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		minAttempts := e.cfg.Analytics.MinAttempts
		if cmd.Flags().Changed("min-attempts") {
			minAttempts, _ = cmd.Flags().GetInt("min-attempts")
		}
		limit := e.cfg.Analytics.BestLimit
		if cmd.Flags().Changed("limit") {
			limit, _ = cmd.Flags().GetInt("limit")
		}

		rows, err := e.projection.BestTopics(commandContext(cmd), learner, minAttempts, limit)
		if err != nil {
			return fmt.Errorf("best topics: %w", err)
		}
		printTopics(cmd.OutOrStdout(), rows)
		return nil
	},
}

func init() {
	statsCmd.Flags().Bool("json", false, "Print as JSON")

	weakCmd.Flags().Bool("topics", false, "List topics instead of questions")
	weakCmd.Flags().Int("min-attempts", 0, "Ignore arms with fewer attempts (default from config)")
	weakCmd.Flags().Float64("threshold", 0, "Success rate below which an arm is weak (default from config)")

	bestCmd.Flags().Int("min-attempts", 0, "Ignore topics with fewer attempts (default from config)")
	bestCmd.Flags().Int("limit", 0, "Maximum topics to list (default from config)")
}
