package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/engine"
	"github.com/roach88/cadence/internal/ir"
)

// CatchUpOptions holds flags for the catchup command.
type CatchUpOptions struct {
	*RootOptions
	Source string
}

// catchUpOutput is the payload of the catchup command.
type catchUpOutput struct {
	engine.CatchUpReport
	NextBoundary *time.Time `json:"next_boundary,omitempty"`
}

func (o catchUpOutput) String() string {
	if o.Skipped {
		return fmt.Sprintf("Catch-up (%s) skipped: another run is in progress.", o.Source)
	}
	s := fmt.Sprintf("Catch-up #%d (%s): %d standards, %d rollups written, %d failed.",
		o.RunSeq, o.Source, o.Standards, o.Written, o.Failed)
	if o.NextBoundary != nil {
		s += fmt.Sprintf("\nNext boundary: %s", o.NextBoundary.Format(time.RFC3339))
	}
	return s
}

// NewCatchUpCommand creates the catchup command.
func NewCatchUpCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatchUpOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catchup",
		Short: "Roll up every elapsed period once and exit",
		Long: `Run a single catch-up for the configured user: every active standard
gets a rollup for each fully elapsed period since its last rollup.

Example:
  cadence catchup --db ./cadence.db --user me
  cadence catchup --source boundary --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatchUp(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", string(ir.SourceResume), "trigger source recorded on rollups (boundary|resume)")

	return cmd
}

func runCatchUp(opts *CatchUpOptions, cmd *cobra.Command) error {
	source, err := ir.ParseSource(opts.Source)
	if err != nil || source == ir.SourceLogEdit {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid source %q: must be boundary or resume", opts.Source))
	}

	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := newFormatter(opts.RootOptions, cmd)

	report, err := a.engine.CatchUp(ctx, source)
	if err != nil {
		return fail(f, "catch-up failed", err)
	}

	out := catchUpOutput{CatchUpReport: report}
	if next, ok, err := a.engine.NextBoundary(ctx); err == nil && ok {
		out.NextBoundary = &next
	}
	return f.Success(out)
}
