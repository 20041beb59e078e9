package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/period"
	"github.com/roach88/cadence/internal/tracker"
)

// StandardOptions holds the definition flags shared by standard add and
// standard update.
type StandardOptions struct {
	*RootOptions
	ActivityID string
	Minimum    float64
	Unit       string
	Cadence    string
	WeekStart  string
	Sessions   int
	Volume     float64
	All        bool
}

// standardList is the payload of standard list.
type standardList []ir.Standard

func (l standardList) String() string {
	if len(l) == 0 {
		return "No standards."
	}
	lines := make([]string, 0, len(l))
	for _, std := range l {
		lines = append(lines, formatStandard(std))
	}
	return strings.Join(lines, "\n")
}

func formatStandard(std ir.Standard) string {
	state := string(std.State)
	if std.DeletedAtMs != nil {
		state = "deleted"
	}
	return fmt.Sprintf("%s  %s  [%s]", std.ID, std.Summary(), state)
}

// NewStandardCommand creates the standard command group.
func NewStandardCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "standard",
		Short: "Manage standards",
		Long: `Create, list, update, archive and delete standards.

A standard is a recurring target such as "100 calls / week". Changing a
standard's cadence starts a fresh rollup history from the current period;
rollups already written keep the snapshot they were generated with.`,
	}

	cmd.AddCommand(newStandardAddCommand(rootOpts))
	cmd.AddCommand(newStandardListCommand(rootOpts))
	cmd.AddCommand(newStandardUpdateCommand(rootOpts))
	cmd.AddCommand(newStandardArchiveCommand(rootOpts))
	cmd.AddCommand(newStandardDeleteCommand(rootOpts))

	return cmd
}

func addDefinitionFlags(cmd *cobra.Command, opts *StandardOptions) {
	cmd.Flags().StringVar(&opts.ActivityID, "activity", "", "activity id (defaults to the standard id)")
	cmd.Flags().Float64Var(&opts.Minimum, "minimum", 0, "minimum quantity per period")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "unit of the quantity, e.g. calls")
	cmd.Flags().StringVar(&opts.Cadence, "cadence", "1w", "cadence (<n>d, <n>w, <n>m)")
	cmd.Flags().StringVar(&opts.WeekStart, "week-start", "", "first day of weekly periods (default monday)")
	cmd.Flags().IntVar(&opts.Sessions, "sessions", 0, "target sessions per period")
	cmd.Flags().Float64Var(&opts.Volume, "volume", 0, "volume per session")
}

func newStandardAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StandardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a standard",
		Example: `  cadence standard add --minimum 100 --unit calls --cadence 1w
  cadence standard add --minimum 3 --unit runs --cadence 1w --week-start sunday --sessions 3 --volume 1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := opts.input(tracker.StandardInput{})
			if err != nil {
				return err
			}
			return withApp(rootOpts, cmd, "create standard", func(ctx context.Context, a *app) (any, error) {
				std, err := a.tracker.CreateStandard(ctx, in)
				if err != nil {
					return nil, err
				}
				return standardResult(std), nil
			})
		},
	}
	addDefinitionFlags(cmd, opts)
	_ = cmd.MarkFlagRequired("minimum")
	_ = cmd.MarkFlagRequired("unit")

	return cmd
}

func newStandardListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StandardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List standards",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, "list standards", func(ctx context.Context, a *app) (any, error) {
				standards, err := a.tracker.ListStandards(ctx, opts.All)
				if err != nil {
					return nil, err
				}
				return standardList(standards), nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.All, "all", false, "include archived and deleted standards")

	return cmd
}

func newStandardUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StandardOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "update <standard-id>",
		Short:         "Change an active standard",
		Example:       `  cadence standard update 0190a1b2-... --minimum 120 --cadence 2w`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, "update standard", func(ctx context.Context, a *app) (any, error) {
				current, err := a.tracker.GetStandard(ctx, args[0])
				if err != nil {
					return nil, err
				}
				in, err := opts.input(currentInput(current), cmd.Flags().Changed)
				if err != nil {
					return nil, err
				}
				std, err := a.tracker.UpdateStandard(ctx, args[0], in)
				if err != nil {
					return nil, err
				}
				return standardResult(std), nil
			})
		},
	}
	addDefinitionFlags(cmd, opts)

	return cmd
}

func newStandardArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "archive <standard-id>",
		Short:         "Stop a standard from generating rollups",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, "archive standard", func(ctx context.Context, a *app) (any, error) {
				if err := a.tracker.ArchiveStandard(ctx, args[0]); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Standard %s archived.", args[0]), nil
			})
		},
	}
}

func newStandardDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <standard-id>",
		Short:         "Soft-delete a standard",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, "delete standard", func(ctx context.Context, a *app) (any, error) {
				if err := a.tracker.DeleteStandard(ctx, args[0]); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Standard %s deleted.", args[0]), nil
			})
		},
	}
}

// standardResult renders one standard: its line in text mode, the full
// document in JSON mode.
type standardResult ir.Standard

func (s standardResult) String() string {
	return formatStandard(ir.Standard(s))
}

// MarshalJSON encodes the underlying standard.
func (s standardResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(ir.Standard(s))
}

func currentInput(std ir.Standard) tracker.StandardInput {
	return tracker.StandardInput{
		ActivityID:            std.ActivityID,
		Minimum:               std.Minimum,
		Unit:                  std.Unit,
		Cadence:               std.Cadence,
		PeriodStartPreference: std.PeriodStartPreference,
		SessionConfig:         std.SessionConfig,
	}
}

// input overlays the flags on base. With no changed func every flag
// applies; otherwise only flags the user set do.
func (o *StandardOptions) input(base tracker.StandardInput, changed ...func(string) bool) (tracker.StandardInput, error) {
	set := func(name string) bool {
		return len(changed) == 0 || changed[0](name)
	}

	in := base
	if set("activity") {
		in.ActivityID = o.ActivityID
	}
	if set("minimum") {
		in.Minimum = o.Minimum
	}
	if set("unit") {
		in.Unit = o.Unit
	}
	if set("cadence") {
		c, err := period.ParseCadence(o.Cadence)
		if err != nil {
			return in, WrapExitError(ExitCommandError, "invalid --cadence", err)
		}
		in.Cadence = c
	}
	if set("week-start") {
		pref, err := period.ParseWeekStart(o.WeekStart)
		if err != nil {
			return in, WrapExitError(ExitCommandError, "invalid --week-start", err)
		}
		in.PeriodStartPreference = pref
	}
	if set("sessions") {
		in.SessionConfig.SessionsPerCadence = o.Sessions
	}
	if set("volume") {
		in.SessionConfig.VolumePerSession = o.Volume
	}
	return in, nil
}
