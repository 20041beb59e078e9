package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/auth"
	"github.com/roach88/cadence/internal/ir"
)

// rollupHistory is the payload of the history command.
type rollupHistory []ir.Rollup

func (h rollupHistory) String() string {
	if len(h) == 0 {
		return "No rollups yet."
	}
	lines := make([]string, 0, len(h))
	for _, r := range h {
		line := fmt.Sprintf("%s  %-26s  %s / %s %s  %-11s  %s%%  %s",
			r.PeriodKey,
			r.PeriodLabel,
			ir.FormatQuantity(r.Total),
			ir.FormatQuantity(r.StandardSnapshot.Minimum),
			r.StandardSnapshot.Unit,
			r.Status,
			ir.FormatQuantity(r.ProgressPercent),
			r.Source)
		if r.TargetSessions > 0 {
			line += fmt.Sprintf("  sessions %d/%d", r.CurrentSessions, r.TargetSessions)
		}
		if !r.Finalized() {
			line += "  (provisional)"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <standard-id>",
		Short: "Show a standard's rollups in period order",
		Long: `Show every rollup written for a standard, oldest period first.

A rollup generated before its period ended (by a log edit in the open
period) is marked provisional; catch-up regenerates it once the period
elapses.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, "history", func(ctx context.Context, a *app) (any, error) {
				userID, err := auth.Require(auth.Static(a.cfg.User))
				if err != nil {
					return nil, err
				}
				if _, err := a.tracker.GetStandard(ctx, args[0]); err != nil {
					return nil, err
				}
				rollups, err := a.store.ListRollups(ctx, userID, args[0])
				if err != nil {
					return nil, err
				}
				return rollupHistory(rollups), nil
			})
		},
	}
}
