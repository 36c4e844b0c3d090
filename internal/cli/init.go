package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xanote/internal/paths"
	"github.com/mesh-intelligence/xanote/internal/sqlite"
	"github.com/mesh-intelligence/xanote/pkg/store"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

func newInitCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configuration and initialize the database",
		Long: `Create the configuration and data directories, write a default config.yaml
when none exists, then create the schema and seed a fresh database.

Running init again is safe: the schema is created only where missing and
seed rows are written only into an empty database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := e.cfg
			if err := os.MkdirAll(cfg.configDir, 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			written, err := writeConfigIfMissing(cfg.configDir, dataDirForFile(cmd, cfg))
			if err != nil {
				return err
			}
			if cfg.store.Backend == types.BackendSQLite && cfg.store.DataDir != sqlite.MemoryDataDir {
				if err := os.MkdirAll(cfg.store.DataDir, 0o755); err != nil {
					return fmt.Errorf("create data directory: %w", err)
				}
			}

			a, err := store.Open(cmd.Context(), cfg.store)
			if err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			installed := a.IsInstalled(cmd.Context())
			if err := a.Close(); err != nil {
				return fmt.Errorf("close storage: %w", err)
			}

			out := cmd.OutOrStdout()
			if written {
				fmt.Fprintf(out, "Wrote %s\n", paths.ConfigFile(cfg.configDir))
			}
			fmt.Fprintf(out, "Initialized %s storage", cfg.store.Backend)
			if cfg.store.Backend == types.BackendSQLite {
				fmt.Fprintf(out, " in %s", cfg.store.DataDir)
			}
			fmt.Fprintln(out)
			if !installed {
				fmt.Fprintln(out, "Run 'xanote install --site-title <title>' to finish setup.")
			}
			return nil
		},
	}
}

// dataDirForFile returns the data_dir recorded in a new config.yaml: only
// an explicit --data-dir is pinned, otherwise the default stays implicit.
func dataDirForFile(cmd *cobra.Command, cfg *config) string {
	if cmd.Flags().Changed("data-dir") {
		return cfg.store.DataDir
	}
	return ""
}
