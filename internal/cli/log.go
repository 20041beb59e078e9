package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cadence/internal/ir"
	"github.com/roach88/cadence/internal/tracker"
)

// LogOptions holds flags for the log subcommands.
type LogOptions struct {
	*RootOptions
	Value float64
	At    string
	Note  string
	All   bool
}

// logList is the payload of log list.
type logList []ir.LogEntry

func (l logList) String() string {
	if len(l) == 0 {
		return "No log entries."
	}
	lines := make([]string, 0, len(l))
	for _, entry := range l {
		lines = append(lines, formatLog(entry))
	}
	return strings.Join(lines, "\n")
}

// logResult renders one entry: its line in text mode, the full document in
// JSON mode.
type logResult ir.LogEntry

func (r logResult) String() string {
	return formatLog(ir.LogEntry(r))
}

// MarshalJSON encodes the underlying entry.
func (r logResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(ir.LogEntry(r))
}

func formatLog(entry ir.LogEntry) string {
	s := fmt.Sprintf("%s  %s  %s",
		entry.ID,
		ir.FromMillis(entry.OccurredAtMs).Format(time.RFC3339),
		ir.FormatQuantity(entry.Value))
	if entry.Note != "" {
		s += fmt.Sprintf("  %q", entry.Note)
	}
	if !entry.IsLive() {
		s += "  [deleted]"
	}
	return s
}

// NewLogCommand creates the log command group.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record and correct activity",
		Long: `Add, edit, delete, restore and list log entries.

Every change recomputes the rollup of the period the entry falls in (and
the period it left, when an edit moves it) with source "log-edit".`,
	}

	cmd.AddCommand(newLogAddCommand(rootOpts))
	cmd.AddCommand(newLogEditCommand(rootOpts))
	cmd.AddCommand(newLogDeleteCommand(rootOpts))
	cmd.AddCommand(newLogRestoreCommand(rootOpts))
	cmd.AddCommand(newLogListCommand(rootOpts))

	return cmd
}

func newLogAddCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "add <standard-id>",
		Short: "Log activity against a standard",
		Example: `  cadence log add 0190a1b2-... --value 25
  cadence log add 0190a1b2-... --value 10 --at 2024-03-12T09:30:00Z --note "follow-ups"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now()
			if opts.At != "" {
				parsed, err := parseInstant(opts.At)
				if err != nil {
					return err
				}
				at = parsed
			}
			in := tracker.LogInput{
				StandardID:   args[0],
				Value:        opts.Value,
				OccurredAtMs: ir.Millis(at),
				Note:         opts.Note,
			}
			return withApp(rootOpts, cmd, "add log", func(ctx context.Context, a *app) (any, error) {
				entry, err := a.tracker.AddLog(ctx, in)
				if err != nil {
					return nil, err
				}
				return logResult(entry), nil
			})
		},
	}
	cmd.Flags().Float64Var(&opts.Value, "value", 0, "quantity logged")
	cmd.Flags().StringVar(&opts.At, "at", "", "when it happened (RFC3339, default now)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "free-form note")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func newLogEditCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "edit <log-id>",
		Short:         "Change a log entry",
		Example:       `  cadence log edit 0190a1b3-... --value 30 --at 2024-03-11T08:00:00Z`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var edit tracker.LogEdit
			if cmd.Flags().Changed("value") {
				edit.Value = &opts.Value
			}
			if cmd.Flags().Changed("at") {
				at, err := parseInstant(opts.At)
				if err != nil {
					return err
				}
				ms := ir.Millis(at)
				edit.OccurredAtMs = &ms
			}
			if cmd.Flags().Changed("note") {
				edit.Note = &opts.Note
			}
			if edit.Value == nil && edit.OccurredAtMs == nil && edit.Note == nil {
				return NewExitError(ExitCommandError, "nothing to edit: set --value, --at or --note")
			}
			return withApp(rootOpts, cmd, "edit log", func(ctx context.Context, a *app) (any, error) {
				entry, err := a.tracker.EditLog(ctx, args[0], edit)
				if err != nil {
					return nil, err
				}
				return logResult(entry), nil
			})
		},
	}
	cmd.Flags().Float64Var(&opts.Value, "value", 0, "new quantity")
	cmd.Flags().StringVar(&opts.At, "at", "", "new instant (RFC3339)")
	cmd.Flags().StringVar(&opts.Note, "note", "", "new note")

	return cmd
}

func newLogDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <log-id>",
		Short:         "Soft-delete a log entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, "delete log", func(ctx context.Context, a *app) (any, error) {
				if err := a.tracker.DeleteLog(ctx, args[0]); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Log %s deleted.", args[0]), nil
			})
		},
	}
}

func newLogRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "restore <log-id>",
		Short:         "Restore a deleted log entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, "restore log", func(ctx context.Context, a *app) (any, error) {
				if err := a.tracker.RestoreLog(ctx, args[0]); err != nil {
					return nil, err
				}
				return fmt.Sprintf("Log %s restored.", args[0]), nil
			})
		},
	}
}

func newLogListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "list <standard-id>",
		Short:         "List a standard's log entries, newest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, "list logs", func(ctx context.Context, a *app) (any, error) {
				entries, err := a.tracker.ListLogs(ctx, args[0], opts.All)
				if err != nil {
					return nil, err
				}
				return logList(entries), nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.All, "all", false, "include deleted entries")

	return cmd
}

func parseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, WrapExitError(ExitCommandError, "invalid --at", err)
	}
	return t, nil
}
