package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/abhisek/mabquiz/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "mabquiz",
	Short: "Adaptive question selection for quizzes",
	Long: "mabquiz keeps a Beta-Bernoulli posterior per learner for every question and topic, " +
		"picks the next question by sampling them, and syncs that state between devices.",
	SilenceUsage: true,
}

// Execute runs the command tree until it returns or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides MABQUIZ_DB env var)")
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-mode", "", "Log encoder: dev or prod (overrides MABQUIZ_LOG_MODE)")
	rootCmd.PersistentFlags().StringP("learner", "l", "", "Learner id (defaults to MABQUIZ_LEARNER)")

	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(weakCmd)
	rootCmd.AddCommand(bestCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then the configured path (config file or MABQUIZ_DB), then the default XDG path.
func resolveDBPath(cmd *cobra.Command, configured string) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	if configured != "" {
		return configured, store.EnsureDir(configured)
	}
	return store.DefaultDBPath()
}
