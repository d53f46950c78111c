// Package cli implements the alert-keeper command line.
package cli

import (
	"github.com/borgmon/alert-keeper/pkg/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "alert-keeper",
		Short: "Calendar reminder alerts with quiet hours",
		Long: `alert-keeper fires reminder alerts for calendar events, holds them back
during quiet hours or while a trigger device is connected, and repeats them
with a configurable backoff.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath(), "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewGCCommand(opts))
	cmd.AddCommand(NewAutostartCommand(opts))

	return cmd
}
