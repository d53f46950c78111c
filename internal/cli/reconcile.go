package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one reconciliation pass against the calendar",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			report, ok := a.reconciler.Run(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "kept %d, expired %d, re-created %d, mismatched %d, failed %d\n",
				report.Kept, report.Expired, report.Rematerialized, report.Mismatched, report.Failed)
			if !ok {
				return errors.New("reconciliation stopped on a storage error, see log")
			}
			return nil
		},
	}
}
