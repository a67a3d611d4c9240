package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/mabquiz/internal/arm"
	"github.com/abhisek/mabquiz/internal/posterior"
)

var recordCmd = &cobra.Command{
	Use:   "record <question-id>",
	Short: "Record one answered question",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, err := learnerID(cmd)
		if err != nil {
			return err
		}
		topicKey, _ := cmd.Flags().GetString("topic")
		course, _ := cmd.Flags().GetString("course")
		topicName, _ := cmd.Flags().GetString("topic-name")
		kind, _ := cmd.Flags().GetString("knowledge-type")
		correct, _ := cmd.Flags().GetBool("correct")
		ms, _ := cmd.Flags().GetInt64("time-ms")
		confidence, _ := cmd.Flags().GetFloat64("confidence")

		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		o := posterior.Outcome{
			LearnerID:      learner,
			QuestionID:     args[0],
			TopicKey:       topicKey,
			Correct:        correct,
			ResponseTimeMs: ms,
			Confidence:     confidence,
		}
		if ref := (arm.TopicRef{Course: course, Topic: topicName, KnowledgeType: kind}); !ref.IsZero() {
			o.Topic = &ref
		}

		q, t, err := e.updater.RecordOutcome(commandContext(cmd), o)
		if err != nil {
			return fmt.Errorf("record outcome: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "question %-20s  attempts %3d  correct %3d  Beta(%.0f, %.0f)\n",
			q.QuestionID, q.Attempts, q.Successes, q.Alpha, q.Beta)
		fmt.Fprintf(out, "topic    %-20s  attempts %3d  correct %3d  Beta(%.0f, %.0f)\n",
			t.TopicKey, t.Attempts, t.Successes, t.Alpha, t.Beta)
		return nil
	},
}

func init() {
	recordCmd.Flags().String("topic", "", "Topic key the question belongs to")
	recordCmd.Flags().String("course", "", "Course, used with --topic-name and --knowledge-type to derive the topic key")
	recordCmd.Flags().String("topic-name", "", "Topic name")
	recordCmd.Flags().String("knowledge-type", "", "Knowledge type")
	recordCmd.Flags().Bool("correct", false, "The answer was correct")
	recordCmd.Flags().Int64("time-ms", 0, "Response time in milliseconds")
	recordCmd.Flags().Float64("confidence", 0.5, "Self-reported confidence in [0,1]")
}
