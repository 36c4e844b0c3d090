package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xanote/internal/audit"
	"github.com/mesh-intelligence/xanote/internal/backup"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

// secretKeys are masked in listings.
var secretKeys = map[string]bool{
	types.KeyWebDAVPassword: true,
}

func newSettingsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and write settings",
	}
	cmd.AddCommand(newSettingsGetCmd(e), newSettingsSetCmd(e), newSettingsListCmd(e))
	return cmd
}

func newSettingsGetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := e.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			v, ok, err := a.cache.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !ok {
				return usageErrorf("setting %q is not set", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}

func newSettingsSetCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write one setting",
		Long: `Write one setting. Changing a backup.* or webdav.* key re-derives the
backup schedule; a running 'xanote serve' picks it up on SIGHUP.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key, value := args[0], args[1]
			if key == types.KeyBackupFrequency {
				if _, ok := backup.CronSpec(backup.Frequency(value)); !ok && backup.Frequency(value) != backup.Manual {
					return usageErrorf("backup.frequency must be manual, daily, weekly or monthly")
				}
			}

			a, err := e.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.cache.Set(ctx, key, value); err != nil {
				return err
			}
			a.audit.Log(ctx, audit.Params{
				UserID:     cliUser,
				Action:     audit.ActionUpdateSettings,
				TargetType: "settings",
				TargetID:   key,
			})

			if affectsBackup(key) {
				s, err := a.scheduler()
				if err != nil {
					return err
				}
				defer s.Stop()
				if err := s.UpdateSchedule(ctx); err != nil {
					return err
				}
				if next, ok := s.Next(); ok {
					fmt.Fprintf(cmd.OutOrStdout(), "Next automatic backup: %s\n", next.Format(time.RFC3339))
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), "Automatic backup disabled")
				}
			}
			return nil
		},
	}
}

func affectsBackup(key string) bool {
	return strings.HasPrefix(key, types.PrefixBackup) || strings.HasPrefix(key, types.PrefixWebDAV)
}

func newSettingsListCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "list [prefix]",
		Short: "List settings, optionally those whose key starts with prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}

			a, err := e.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			list, err := a.cache.List(ctx, prefix)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Key", "Value", "Updated")
			for _, s := range list {
				value := s.Value
				if secretKeys[s.Key] && value != "" {
					value = "********"
				}
				if err := table.Append([]string{s.Key, value, humanize.Time(time.UnixMilli(s.UpdatedAt))}); err != nil {
					return err
				}
			}
			return table.Render()
		},
	}
}
