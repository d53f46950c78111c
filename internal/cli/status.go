package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/borgmon/alert-keeper/pkg/quiet"
	"github.com/borgmon/alert-keeper/pkg/scheduler"
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show silence state and upcoming alerts",
		Example: `  alert-keeper status
  alert-keeper status --at 23:30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			printStatus(out, a.scheduler.Status(cmd.Context()))

			if at == "" {
				return nil
			}
			hour, minute, err := quiet.Parse(at)
			if err != nil {
				return err
			}
			now := a.clock.Now()
			t := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
			w := a.settings.Load().QuietHours
			fmt.Fprintf(out, "quiet hours at %s: %s\n", at, formatUntil(quiet.SilentUntil(w, t)))
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "also evaluate quiet hours at this clock time (HH:MM)")
	return cmd
}

func printStatus(out io.Writer, st scheduler.Status) {
	fmt.Fprintf(out, "now:            %s\n", st.Now.Format(time.RFC3339))
	fmt.Fprintf(out, "quiet hours:    %s\n", formatUntil(st.QuietUntil))
	fmt.Fprintf(out, "presence:       %s\n", formatUntil(st.PresenceUntil))
	fmt.Fprintf(out, "next alert:     %s\n", formatTime(st.NextAlert))
	fmt.Fprintf(out, "next reminder:  %s\n", formatTime(st.NextReminder))
	fmt.Fprintf(out, "pending alerts: %d\n", len(st.Pending))
	for _, e := range st.Pending {
		fmt.Fprintf(out, "  %s  %s\n", e.AlertTime.Format("2006-01-02 15:04"), e.Title)
	}
}

func formatUntil(t time.Time) string {
	if t.IsZero() {
		return "not silent"
	}
	return "silent until " + t.Format("2006-01-02 15:04")
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.Format("2006-01-02 15:04")
}
