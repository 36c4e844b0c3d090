package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xanote/internal/audit"
)

func newLogsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and prune the audit log",
	}
	cmd.AddCommand(newLogsListCmd(e), newLogsCleanCmd(e))
	return cmd
}

func newLogsListCmd(e *env) *cobra.Command {
	var (
		f     audit.Filter
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries for a user, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := e.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			if since > 0 {
				f.Start = time.Now().Add(-since).UnixMilli()
			}
			page, err := a.audit.List(ctx, f)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("When", "Action", "Target", "Details")
			for _, l := range page.Entries {
				target := l.TargetType
				if l.TargetID != "" {
					target += ":" + l.TargetID
				}
				var details string
				if l.Details != nil {
					b, _ := json.Marshal(l.Details)
					details = string(b)
				}
				if err := table.Append([]string{humanize.Time(time.UnixMilli(l.CreatedAt)), l.Action, target, details}); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d of %d entries\n", len(page.Entries), page.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.UserID, "user", cliUser, "user id")
	cmd.Flags().StringVar(&f.Action, "action", "", "only this action")
	cmd.Flags().StringVar(&f.TargetType, "target-type", "", "only this target type")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this, e.g. 24h")
	cmd.Flags().IntVar(&f.Limit, "limit", audit.DefaultLimit, "maximum entries to show")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "entries to skip")
	return cmd
}

func newLogsCleanCmd(e *env) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete audit entries older than the retention period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 0 {
				return usageErrorf("--days must not be negative")
			}
			ctx := cmd.Context()
			a, err := e.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.audit.CleanOld(ctx, days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s entries\n", humanize.Comma(n))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", audit.DefaultRetention, "days of entries to keep")
	return cmd
}
