package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xanote/internal/audit"
	"github.com/mesh-intelligence/xanote/pkg/store"
)

func newInstallCmd(e *env) *cobra.Command {
	var p store.InstallParams
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Write the install-time settings and mark the system installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if p.SiteTitle == "" {
				return usageErrorf("--site-title is required")
			}
			ctx := cmd.Context()
			a, err := e.open(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := store.Install(ctx, a.adapter, a.cache, p); err != nil {
				return err
			}
			a.audit.Log(ctx, audit.Params{
				UserID:     cliUser,
				Action:     audit.ActionUpdateSettings,
				TargetType: "settings",
				Details:    map[string]string{"event": "install", "site_title": p.SiteTitle},
			})
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %q\n", p.SiteTitle)
			return nil
		},
	}
	cmd.Flags().StringVar(&p.SiteTitle, "site-title", "", "site title (required)")
	cmd.Flags().StringVar(&p.AdminEmail, "admin-email", "", "administrator email")
	return cmd
}
