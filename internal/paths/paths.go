// Package paths resolves where xanote keeps its config file and its
// embedded database.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName is the directory name used under the platform base directories.
const AppName = "xanote"

// ConfigFileName is the name of the config file inside the config dir.
const ConfigFileName = "config.yaml"

// Environment variables overriding the directories.
const (
	EnvConfigDir = "XANOTE_CONFIG_DIR"
	EnvDataDir   = "XANOTE_DATA_DIR"
)

// memoryDir is passed through unresolved so an in-memory database can be
// selected from the command line.
const memoryDir = ":memory:"

// platform holds the lookups the defaults depend on; tests replace them.
var platform = struct {
	goos          string
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	goos:          runtime.GOOS,
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// base returns the per-user base directory. On Linux that is xdgVar when
// set, else fallback under the home directory. Other platforms use
// os.UserConfigDir for config and data alike.
func base(xdgVar string, fallback ...string) (string, error) {
	if platform.goos != "linux" {
		return platform.userConfigDir()
	}
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return xdg, nil
	}
	home, err := platform.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{home}, fallback...)...), nil
}

// DefaultConfigDir returns the platform config directory:
// $XDG_CONFIG_HOME/xanote or ~/.config/xanote on Linux, and
// os.UserConfigDir()/xanote elsewhere.
func DefaultConfigDir() (string, error) {
	dir, err := base("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// DefaultDataDir returns the platform data directory:
// $XDG_DATA_HOME/xanote or ~/.local/share/xanote on Linux, and
// os.UserConfigDir()/xanote elsewhere.
func DefaultDataDir() (string, error) {
	dir, err := base("XDG_DATA_HOME", ".local", "share")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// ResolveConfigDir picks the config directory: flag, then XANOTE_CONFIG_DIR,
// then DefaultConfigDir. Explicit values are made absolute.
func ResolveConfigDir(flag string) (string, error) {
	return resolve(DefaultConfigDir, flag, os.Getenv(EnvConfigDir))
}

// ResolveDataDir picks the data directory: flag, then the data_dir value
// from the config file, then XANOTE_DATA_DIR, then DefaultDataDir.
func ResolveDataDir(flag, configured string) (string, error) {
	return resolve(DefaultDataDir, flag, configured, os.Getenv(EnvDataDir))
}

// ConfigFile returns the config file path inside dir.
func ConfigFile(dir string) string {
	return filepath.Join(dir, ConfigFileName)
}

func resolve(def func() (string, error), candidates ...string) (string, error) {
	for _, c := range candidates {
		switch c {
		case "":
			continue
		case memoryDir:
			return c, nil
		default:
			return filepath.Abs(c)
		}
	}
	return def()
}
