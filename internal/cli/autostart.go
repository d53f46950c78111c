package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/emersion/go-autostart"
	"github.com/spf13/cobra"
)

// NewAutostartCommand creates the autostart command, which registers
// "alert-keeper run" as a login item for the current user.
func NewAutostartCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autostart",
		Short: "Manage starting the daemon at login",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Start alert-keeper at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := autostartApp(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			if app.IsEnabled() {
				fmt.Fprintln(cmd.OutOrStdout(), "autostart already enabled")
				return nil
			}
			if err := app.Enable(); err != nil {
				return fmt.Errorf("enable autostart: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "autostart enabled")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Stop starting alert-keeper at login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := autostartApp(rootOpts.ConfigPath)
			if err != nil {
				return err
			}
			if !app.IsEnabled() {
				fmt.Fprintln(cmd.OutOrStdout(), "autostart already disabled")
				return nil
			}
			if err := app.Disable(); err != nil {
				return fmt.Errorf("disable autostart: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "autostart disabled")
			return nil
		},
	})

	return cmd
}

func autostartApp(configPath string) (*autostart.App, error) {
	execPath, err := os.Executable()
	if err != nil {
		return nil, err
	}
	// Resolve symlinks if any
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return nil, err
	}
	configPath, err = filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}

	return &autostart.App{
		Name:        "alert-keeper",
		DisplayName: "Alert Keeper",
		Exec:        []string{execPath, "--config", configPath, "run"},
	}, nil
}
