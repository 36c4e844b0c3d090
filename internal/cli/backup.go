package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xanote/internal/audit"
	"github.com/mesh-intelligence/xanote/internal/backup"
)

func newBackupCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Run or inspect WebDAV backups",
	}
	cmd.AddCommand(newBackupNowCmd(e), newBackupScheduleCmd(e))
	return cmd
}

func newBackupNowCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Export the database and upload it to WebDAV immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := e.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.scheduler()
			if err != nil {
				return err
			}
			defer s.Stop()

			out, err := s.RunNow(ctx)
			if len(out.Steps) > 0 {
				printOutcome(cmd.OutOrStdout(), out)
				a.audit.Log(ctx, audit.Params{
					UserID:     cliUser,
					Action:     audit.ActionBackupData,
					TargetType: "backup",
					Details:    map[string]any{"ok": err == nil},
				})
			}
			return err
		},
	}
}

func printOutcome(w io.Writer, out backup.Outcome) {
	for _, s := range out.Steps {
		switch {
		case s.Skipped:
			fmt.Fprintf(w, "%-12s skipped\n", s.Name)
		case s.Err != nil:
			fmt.Fprintf(w, "%-12s failed: %s\n", s.Name, s.Err)
		case s.File != "":
			fmt.Fprintf(w, "%-12s uploaded %s (%s)\n", s.Name, s.File, humanize.Bytes(uint64(s.Bytes)))
		default:
			fmt.Fprintf(w, "%-12s ok\n", s.Name)
		}
		for _, t := range s.EmptyTables {
			fmt.Fprintf(w, "%-12s table %s could not be read and was exported empty\n", "", t)
		}
	}
	fmt.Fprintf(w, "Finished in %s\n", out.Finished.Sub(out.Started).Round(time.Millisecond))
}

func newBackupScheduleCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Show the automatic backup schedule derived from settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := e.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			s, err := a.scheduler()
			if err != nil {
				return err
			}
			defer s.Stop()
			if err := s.UpdateSchedule(ctx); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			cfg, _, err := backup.LoadConfig(ctx, a.cache)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Frequency: %s\n", cfg.Frequency)
			fmt.Fprintf(w, "Timezone:  %s\n", s.Location())
			next, ok := s.Next()
			if !ok {
				fmt.Fprintf(w, "State:     %s (no automatic backup)\n", s.State())
				return nil
			}
			spec, _ := backup.CronSpec(cfg.Frequency)
			fmt.Fprintf(w, "State:     %s (%s, cron %q)\n", s.State(), backup.JobName, spec)
			fmt.Fprintf(w, "Next run:  %s (%s)\n", next.Format(time.RFC3339), humanize.Time(next))
			return nil
		},
	}
}
