package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/abhisek/mabquiz/internal/analytics"
)

func printTopics(out io.Writer, rows []analytics.TopicRow) {
	if len(rows) == 0 {
		fmt.Fprintln(out, "No topics.")
		return
	}
	fmt.Fprintf(out, "%-32s  %8s  %6s  %9s  %s\n", "Topic", "Attempts", "Rate", "Posterior", "Avg ms")
	fmt.Fprintln(out, strings.Repeat("─", 76))
	for _, r := range rows {
		fmt.Fprintf(out, "%-32s  %8d  %5.1f%%  %9.3f  %.0f\n",
			r.TopicKey, r.Attempts, r.SuccessRate*100, r.PosteriorMean, r.MeanResponseTimeMs)
	}
}
