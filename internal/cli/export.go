package cli

import (
	"bytes"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xanote/internal/audit"
	"github.com/mesh-intelligence/xanote/internal/backup"
)

func newExportCmd(e *env) *cobra.Command {
	var (
		outPath string
		notes   bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup export to a local file",
		Long: `Write the full database export, or with --notes the notes export, to a
local file. The file is replaced atomically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := e.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			now := time.Now()
			var v any
			if notes {
				v, err = backup.ExportNotes(ctx, a.adapter, now)
				if err != nil {
					return err
				}
			} else {
				export, failed := backup.ExportDatabase(ctx, a.adapter)
				for _, t := range failed {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: table %s could not be read and was exported empty\n", t)
				}
				v = export
			}
			data, err := backup.Encode(v)
			if err != nil {
				return err
			}

			if outPath == "" {
				if notes {
					outPath = backup.NotesFileName(now)
				} else {
					outPath = backup.DatabaseFileName(now)
				}
			}
			if err := atomic.WriteFile(outPath, bytes.NewReader(data)); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}

			a.audit.Log(ctx, audit.Params{
				UserID:     cliUser,
				Action:     audit.ActionExportData,
				TargetType: "file",
				TargetID:   outPath,
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s)\n", outPath, humanize.Bytes(uint64(len(data))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: the backup file name in the current directory)")
	cmd.Flags().BoolVar(&notes, "notes", false, "export notes and categories only")
	return cmd
}
