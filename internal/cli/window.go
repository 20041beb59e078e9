package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/period"
)

// WindowOptions holds flags for the window command.
type WindowOptions struct {
	*RootOptions
	At        string
	Cadence   string
	WeekStart string

	// now overrides the reference instant when At is empty (for testing).
	now func() time.Time
}

// windowOutput is the payload of the window command.
type windowOutput struct {
	ir.Window
	Cadence  string    `json:"cadence"`
	Timezone string    `json:"timezone"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

func (o windowOutput) String() string {
	return fmt.Sprintf("%s (%s, key %s)\n  start: %s\n  end:   %s",
		o.Label, o.Cadence, o.PeriodKey,
		o.Start.Format(time.RFC3339), o.End.Format(time.RFC3339))
}

// NewWindowCommand creates the window command.
func NewWindowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WindowOptions{RootOptions: rootOpts, now: time.Now}

	cmd := &cobra.Command{
		Use:   "window",
		Short: "Show the period window containing an instant",
		Long: `Compute the half-open period window [start, end) that contains an
instant for a cadence. Windows are pure functions of the instant, the
cadence, the timezone and the week start.

Example:
  cadence window --cadence 1w
  cadence window --at 2024-03-13T12:00:00Z --cadence 2w --week-start sunday --tz America/New_York`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWindow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.At, "at", "", "reference instant (RFC3339, default now)")
	cmd.Flags().StringVar(&opts.Cadence, "cadence", "1w", "cadence (<n>d, <n>w, <n>m)")
	cmd.Flags().StringVar(&opts.WeekStart, "week-start", "", "first day of weekly periods (default monday)")

	return cmd
}

func runWindow(opts *WindowOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid timezone", err)
	}

	at := opts.now()
	if opts.At != "" {
		at, err = parseInstant(opts.At)
		if err != nil {
			return err
		}
	}
	cadence, err := period.ParseCadence(opts.Cadence)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --cadence", err)
	}
	pref, err := period.ParseWeekStart(opts.WeekStart)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --week-start", err)
	}

	w := period.ComputeWindow(ir.Millis(at), cadence, loc, pref)
	return newFormatter(opts.RootOptions, cmd).Success(windowOutput{
		Window:   w,
		Cadence:  cadence.String(),
		Timezone: loc.String(),
		Start:    ir.FromMillis(w.StartMs).In(loc),
		End:      ir.FromMillis(w.EndMs).In(loc),
	})
}
