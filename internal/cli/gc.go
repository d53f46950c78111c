package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewGCCommand creates the gc command.
func NewGCCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "gc",
		Short: "Delete alerts and reminder state older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			res := a.gc(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d alerts, %d reminder states\n", res.Alerts, res.Cadence)
			return nil
		},
	}
}
