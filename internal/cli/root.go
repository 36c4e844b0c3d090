// Package cli implements the xanote command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/xanote/internal/audit"
	"github.com/mesh-intelligence/xanote/internal/backup"
	"github.com/mesh-intelligence/xanote/internal/logging"
	"github.com/mesh-intelligence/xanote/internal/settings"
	"github.com/mesh-intelligence/xanote/pkg/store"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

// Version is the release version, set at build time with
// -ldflags "-X github.com/mesh-intelligence/xanote/internal/cli.Version=...".
var Version = "dev"

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// cliUser is the audit user id for actions taken from the command line.
const cliUser = "cli"

// errUsage marks errors caused by bad input.
var errUsage = errors.New("usage")

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// rootFlags holds global flag values.
type rootFlags struct {
	configDir string
	dataDir   string
	logLevel  string
}

// env carries what PersistentPreRunE resolved to the subcommands.
type env struct {
	flags rootFlags
	cfg   *config
}

// NewRootCmd creates the top-level "xanote" command with its subcommands.
func NewRootCmd() *cobra.Command {
	e := &env{}
	root := &cobra.Command{
		Use:           "xanote",
		Short:         "Self-hosted note service storage and backup tool",
		Long:          "xanote manages the note service database, its settings and its scheduled WebDAV backups.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(e.flags.configDir, e.flags.dataDir)
			if err != nil {
				return err
			}
			logCfg := cfg.file.Log
			if e.flags.logLevel != "" {
				logCfg.Level = e.flags.logLevel
			}
			if err := logging.Init(logCfg, cmd.ErrOrStderr()); err != nil {
				return fmt.Errorf("%w: %w", errUsage, err)
			}
			e.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&e.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir, or $XANOTE_CONFIG_DIR)")
	root.PersistentFlags().StringVar(&e.flags.dataDir, "data-dir", "", "data directory for the embedded database (default: platform data dir, or $XANOTE_DATA_DIR)")
	root.PersistentFlags().StringVar(&e.flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(e),
		newInstallCmd(e),
		newStatusCmd(e),
		newSettingsCmd(e),
		newBackupCmd(e),
		newExportCmd(e),
		newLogsCmd(e),
		newServeCmd(e),
	)
	return root
}

// Execute runs the root command and exits with the matching code.
func Execute() {
	os.Exit(run(NewRootCmd(), os.Args[1:], os.Stderr))
}

func run(root *cobra.Command, args []string, stderr io.Writer) int {
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintf(stderr, "Error: %s\n", err)
	return exitCode(err)
}

// exitCode maps err onto an exit code: bad input and install-state errors
// are the user's to fix, everything else is a system error.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, errUsage),
		errors.Is(err, types.ErrNotInstalled),
		errors.Is(err, types.ErrAlreadyInstalled),
		errors.Is(err, backup.ErrNotConfigured),
		errors.Is(err, audit.ErrUserRequired):
		return exitUserError
	default:
		return exitSysError
	}
}

// app is an open adapter with the services built on it.
type app struct {
	adapter types.Adapter
	cache   *settings.Cache
	audit   *audit.Service
	cfg     *config
}

// open initializes the configured backend. With requireInstalled set it
// fails with types.ErrNotInstalled on a system that has not been installed.
func (e *env) open(ctx context.Context, requireInstalled bool) (*app, error) {
	a, err := store.Open(ctx, e.cfg.store)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", e.cfg.store.Backend, err)
	}
	if requireInstalled {
		if err := store.RequireInstalled(ctx, a); err != nil {
			a.Close()
			return nil, err
		}
	}
	return &app{
		adapter: a,
		cache:   settings.New(a),
		audit:   audit.New(a),
		cfg:     e.cfg,
	}, nil
}

func (a *app) close() {
	if err := a.adapter.Close(); err != nil {
		log.WithError(err).Warn("close backend")
	}
}

// scheduler returns a backup scheduler over the app's backend.
func (a *app) scheduler() (*backup.Scheduler, error) {
	loc, err := a.cfg.location()
	if err != nil {
		return nil, err
	}
	return backup.NewScheduler(a.adapter, a.cache,
		backup.WithLocation(loc),
		backup.WithRetryPolicy(a.cfg.webdavPolicy()),
	), nil
}
