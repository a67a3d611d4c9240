package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset learner data",
	Long:  "Delete every question and topic arm of the learner and forget the last sync time.",
	RunE: func(cmd *cobra.Command, args []string) error {
		learner, err := learnerID(cmd)
		if err != nil {
			return err
		}
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return errors.New("refusing to reset without --yes")
		}

		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		ctx := commandContext(cmd)

		if err := e.updater.Reset(ctx, learner); err != nil {
			return fmt.Errorf("reset arms: %w", err)
		}
		if err := e.reconciler.ForgetCheckpoint(ctx, learner); err != nil {
			return fmt.Errorf("forget checkpoint: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset learner %s.\n", learner)
		return nil
	},
}

func init() {
	resetCmd.Flags().Bool("yes", false, "Confirm the reset")
}
