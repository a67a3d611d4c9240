package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/mabquiz/internal/selection"
)

var nextCmd = &cobra.Command{
	Use:   "next <question-id[@topic-key]>...",
	Short: "Pick the next question from the given candidates",
	Long: "Pick the next question from the given candidates. A candidate without\n" +
		"@topic-key uses the topic it was last answered under.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, err := learnerID(cmd)
		if err != nil {
			return err
		}
		explain, _ := cmd.Flags().GetBool("explain")

		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		candidates := parseCandidates(args)
		out := cmd.OutOrStdout()
		if !explain {
			id, err := e.selector.SelectNext(commandContext(cmd), learner, candidates)
			if err != nil {
				return fmt.Errorf("select next: %w", err)
			}
			fmt.Fprintln(out, id)
			return nil
		}

		scores, err := e.selector.Rank(commandContext(cmd), learner, candidates)
		if err != nil {
			return fmt.Errorf("rank candidates: %w", err)
		}
		fmt.Fprintf(out, "%-20s  %-24s  %8s  %8s  %8s  %8s  %s\n",
			"Question", "Topic", "Score", "s_q", "s_t", "Explore", "Attempts")
		fmt.Fprintln(out, strings.Repeat("─", 96))
		for _, s := range scores {
			fmt.Fprintf(out, "%-20s  %-24s  %8.4f  %8.4f  %8.4f  %8.4f  %d\n",
				s.QuestionID, s.TopicKey, s.Total, s.QuestionSample, s.TopicSample, s.Exploration, s.Attempts)
		}
		return nil
	},
}

func init() {
	nextCmd.Flags().Bool("explain", false, "Show every candidate's sampled score")
}

// parseCandidates reads "id" or "id@topic-key" arguments.
func parseCandidates(args []string) []selection.Candidate {
	out := make([]selection.Candidate, 0, len(args))
	for _, a := range args {
		id, topic, _ := strings.Cut(a, "@")
		out = append(out, selection.Candidate{QuestionID: strings.TrimSpace(id), TopicKey: strings.TrimSpace(topic)})
	}
	return out
}
