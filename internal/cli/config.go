package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/xanote/internal/backup"
	"github.com/mesh-intelligence/xanote/internal/logging"
	"github.com/mesh-intelligence/xanote/internal/paths"
	"github.com/mesh-intelligence/xanote/internal/retry"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

// envPrefix prefixes environment overrides, e.g. XANOTE_D1_API_TOKEN.
const envPrefix = "XANOTE"

// Config keys.
const (
	keyBackend          = "backend"
	keyDataDir          = "data_dir"
	keyBackfillDefaults = "backfill_defaults"
	keyD1AccountID      = "d1.account_id"
	keyD1DatabaseID     = "d1.database_id"
	keyD1APIToken       = "d1.api_token"
	keyD1Endpoint       = "d1.endpoint"
	keyD1Timeout        = "d1.timeout"
	keyD1Retries        = "d1.retries"
	keyBackupTimezone   = "backup.timezone"
	keyWebDAVTimeout    = "webdav.timeout"
	keyWebDAVRetries    = "webdav.retries"
	keyLogLevel         = "log.level"
	keyLogFormat        = "log.format"
	keyMetricsAddr      = "metrics.addr"
)

// fileConfig is the layout of config.yaml.
type fileConfig struct {
	Backend          string         `yaml:"backend" mapstructure:"backend"`
	DataDir          string         `yaml:"data_dir,omitempty" mapstructure:"data_dir"`
	BackfillDefaults bool           `yaml:"backfill_defaults" mapstructure:"backfill_defaults"`
	D1               d1Section      `yaml:"d1" mapstructure:"d1"`
	Backup           backupSection  `yaml:"backup" mapstructure:"backup"`
	WebDAV           policySection  `yaml:"webdav" mapstructure:"webdav"`
	Log              logging.Config `yaml:"log" mapstructure:"log"`
	Metrics          metricsSection `yaml:"metrics" mapstructure:"metrics"`
}

type d1Section struct {
	AccountID  string        `yaml:"account_id" mapstructure:"account_id"`
	DatabaseID string        `yaml:"database_id" mapstructure:"database_id"`
	APIToken   string        `yaml:"api_token" mapstructure:"api_token"`
	Endpoint   string        `yaml:"endpoint,omitempty" mapstructure:"endpoint"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	Retries    int           `yaml:"retries" mapstructure:"retries"`
}

type backupSection struct {
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

type policySection struct {
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	Retries int           `yaml:"retries" mapstructure:"retries" validate:"gte=0,lte=10"`
}

type metricsSection struct {
	Addr string `yaml:"addr,omitempty" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// defaultFileConfig is written to config.yaml by init.
func defaultFileConfig(dataDir string) fileConfig {
	return fileConfig{
		Backend: types.BackendSQLite,
		DataDir: dataDir,
		Backup:  backupSection{Timezone: backup.DefaultTimezone},
		Log:     logging.Config{Level: "info", Format: "text"},
	}
}

// config is the resolved process configuration.
type config struct {
	configDir string
	file      fileConfig
	store     types.Config
}

// webdavPolicy returns the upload retry policy.
func (s *config) webdavPolicy() retry.Policy {
	return retry.Policy{Timeout: s.file.WebDAV.Timeout, Retries: s.file.WebDAV.Retries}
}

// location returns the backup timezone.
func (s *config) location() (*time.Location, error) {
	tz := s.file.Backup.Timezone
	if tz == "" {
		tz = backup.DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: backup.timezone: %w", types.ErrConfiguration, err)
	}
	return loc, nil
}

// newViper returns a viper instance reading config.yaml from configDir with
// XANOTE_ environment overrides. A missing file is not an error.
func newViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(keyBackend, types.BackendSQLite)
	v.SetDefault(keyBackupTimezone, backup.DefaultTimezone)
	v.SetDefault(keyLogLevel, "info")
	v.SetDefault(keyLogFormat, "text")
	// Every key needs a default so AutomaticEnv applies during Unmarshal.
	for k, def := range map[string]any{
		keyDataDir:          "",
		keyBackfillDefaults: false,
		keyD1AccountID:      "",
		keyD1DatabaseID:     "",
		keyD1APIToken:       "",
		keyD1Endpoint:       "",
		keyD1Timeout:        time.Duration(0),
		keyD1Retries:        0,
		keyWebDAVTimeout:    time.Duration(0),
		keyWebDAVRetries:    0,
		keyMetricsAddr:      "",
	} {
		v.SetDefault(k, def)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(paths.ConfigFile(configDir))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// loadConfig resolves directories and reads the configuration.
func loadConfig(configFlag, dataFlag string) (*config, error) {
	configDir, err := paths.ResolveConfigDir(configFlag)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	v, err := newViper(configDir)
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(fc); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrConfiguration, err)
	}

	dataDir, err := paths.ResolveDataDir(dataFlag, fc.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	return &config{
		configDir: configDir,
		file:      fc,
		store: types.Config{
			Backend:          fc.Backend,
			DataDir:          dataDir,
			BackfillDefaults: fc.BackfillDefaults,
			D1: types.D1Config{
				AccountID:  fc.D1.AccountID,
				DatabaseID: fc.D1.DatabaseID,
				APIToken:   fc.D1.APIToken,
				Endpoint:   fc.D1.Endpoint,
				Timeout:    fc.D1.Timeout,
				Retries:    fc.D1.Retries,
			},
		},
	}, nil
}

// writeConfigIfMissing writes the default config.yaml. An existing file is
// left alone. It reports whether the file was written.
func writeConfigIfMissing(configDir, dataDir string) (bool, error) {
	path := paths.ConfigFile(configDir)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}

	data, err := yaml.Marshal(defaultFileConfig(dataDir))
	if err != nil {
		return false, fmt.Errorf("marshal config: %w", err)
	}
	header := []byte("# xanote configuration. Environment variables XANOTE_<KEY> override\n# these values, e.g. XANOTE_D1_API_TOKEN.\n")
	if err := os.WriteFile(path, append(header, data...), 0o600); err != nil {
		return false, fmt.Errorf("write config: %w", err)
	}
	return true, nil
}
