package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the alert daemon",
		Long: `Run the scheduler loop until interrupted.

Reconciliation against the calendar and garbage collection of old alerts run
on the cron schedules from the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, rootOpts)
		},
	}
}

func runDaemon(cmd *cobra.Command, opts *RootOptions) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("signal received, shutting down", zap.Stringer("signal", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	jobs := cron.New()
	if _, err := jobs.AddFunc(a.file.ReconcileCron, func() { a.reconciler.Run(ctx) }); err != nil {
		return fmt.Errorf("reconcile_cron %q: %w", a.file.ReconcileCron, err)
	}
	if _, err := jobs.AddFunc(a.file.GCCron, func() { a.gc(ctx) }); err != nil {
		return fmt.Errorf("gc_cron %q: %w", a.file.GCCron, err)
	}
	jobs.Start()
	defer func() { <-jobs.Stop().Done() }()

	a.logger.Info("alert-keeper started",
		zap.String("database", a.file.Database),
		zap.String("calendar", a.file.Calendar),
	)
	a.reconciler.Run(ctx)

	for {
		wake := a.scheduler.Tick(ctx)

		timer := time.NewTimer(time.Until(wake))
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("alert-keeper stopped")
			return nil
		case <-timer.C:
		}
	}
}
