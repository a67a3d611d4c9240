package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/mabquiz/internal/armsync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Exchange arm state with another device",
}

var syncExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every arm changed since the last sync as a JSON batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, err := learnerID(cmd)
		if err != nil {
			return err
		}
		outPath, _ := cmd.Flags().GetString("output")
		mark, _ := cmd.Flags().GetBool("mark")

		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		ctx := commandContext(cmd)

		since, err := sinceFlag(cmd, e, learner)
		if err != nil {
			return err
		}
		delta, err := e.reconciler.ChangesSince(ctx, learner, since)
		if err != nil {
			return fmt.Errorf("changes since %d: %w", since, err)
		}

		batch := armsync.NewBatch(learner, since, 0, delta)
		if outPath != "" && outPath != "-" {
			err = writeBatchFile(outPath, batch)
		} else {
			err = armsync.EncodeBatch(cmd.OutOrStdout(), batch)
		}
		if err != nil {
			return fmt.Errorf("write batch: %w", err)
		}

		if mark {
			cut := since
			for _, r := range batch.Records {
				cut = max(cut, r.UpdatedAt)
			}
			if err := e.reconciler.MarkSynced(ctx, learner, cut); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
		}
		e.log.Info("batch exported", "learner_id", learner, "batch_id", batch.BatchID, "records", len(batch.Records))
		return nil
	},
}

var syncImportCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Apply a JSON batch from another device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()
			r = f
		}
		batch, err := armsync.DecodeBatch(r)
		if err != nil {
			return err
		}

		learner, _ := cmd.Flags().GetString("learner")
		if learner == "" {
			learner = batch.LearnerID
		}
		if learner != batch.LearnerID {
			return fmt.Errorf("batch belongs to learner %q, not %q", batch.LearnerID, learner)
		}
		delta, err := batch.Delta()
		if err != nil {
			return err
		}

		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		ctx := commandContext(cmd)

		res, err := e.reconciler.ApplyRemote(ctx, learner, delta)
		if err != nil {
			return fmt.Errorf("apply batch: %w", err)
		}
		// Batches answered by a server carry the time to resume from.
		if batch.ServerTime > 0 {
			if err := e.reconciler.MarkSynced(ctx, learner, batch.ServerTime); err != nil {
				return fmt.Errorf("save checkpoint: %w", err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "batch %s: %d inserted, %d replaced, %d kept\n",
			batch.BatchID, res.Inserted, res.Replaced, res.Kept)
		return nil
	},
}

var syncPendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Count arms changed since the last sync",
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

		since, err := sinceFlag(cmd, e, learner)
		if err != nil {
			return err
		}
		n, err := e.reconciler.PendingCount(commandContext(cmd), learner, since)
		if err != nil {
			return fmt.Errorf("pending count: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "since %d: %d question arms, %d topic arms, %d total\n",
			since, n.QuestionArms, n.TopicArms, n.Total)
		return nil
	},
}

// sinceFlag returns --since when given, otherwise the stored checkpoint.
func sinceFlag(cmd *cobra.Command, e *engine, learner string) (int64, error) {
	if cmd.Flags().Changed("since") {
		return cmd.Flags().GetInt64("since")
	}
	cp, err := e.reconciler.Checkpoint(commandContext(cmd), learner)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, nil
}

func init() {
	syncExportCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	syncExportCmd.Flags().Int64("since", 0, "Checkpoint in epoch ms (default: last sync)")
	syncExportCmd.Flags().Bool("mark", false, "Advance the checkpoint past the exported arms")
	syncPendingCmd.Flags().Int64("since", 0, "Checkpoint in epoch ms (default: last sync)")

	syncCmd.AddCommand(syncExportCmd)
	syncCmd.AddCommand(syncImportCmd)
	syncCmd.AddCommand(syncPendingCmd)
}

// writeBatchFile writes b to path. The file is only reported written once
// it has been closed without error.
func writeBatchFile(path string, b armsync.Batch) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := armsync.EncodeBatch(f, b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
