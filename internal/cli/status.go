package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xanote/internal/backup"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

func newStatusCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show install state, backend and backup status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := e.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			installed := a.adapter.IsInstalled(ctx)
			fmt.Fprintf(out, "Backend:     %s\n", e.cfg.store.Backend)
			if e.cfg.store.Backend == types.BackendSQLite {
				fmt.Fprintf(out, "Data dir:    %s\n", e.cfg.store.DataDir)
			}
			fmt.Fprintf(out, "Installed:   %t\n", installed)
			if !installed {
				return nil
			}

			cfg, scheduled, err := backup.LoadConfig(ctx, a.cache)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Backup:      %s\n", cfg.Frequency)
			if !cfg.HasWebDAV() {
				fmt.Fprintln(out, "WebDAV:      not configured")
			}
			if scheduled {
				loc, err := e.cfg.location()
				if err != nil {
					return err
				}
				if next, err := backup.NextRun(cfg.Frequency, loc, time.Now()); err == nil {
					fmt.Fprintf(out, "Next backup: %s (%s)\n", next.Format(time.RFC3339), humanize.Time(next))
				}
			}
			fmt.Fprintf(out, "Last backup: %s\n", describeLastBackup(cfg.LastBackup))
			return nil
		},
	}
}

func describeLastBackup(v string) string {
	if v == "" {
		return "never"
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return v
	}
	return fmt.Sprintf("%s (%s)", v, humanize.Time(t))
}
