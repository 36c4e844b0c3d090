package types

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds backend selection and parameters for Adapter.Initialize.
type Config struct {
	Backend string `json:"backend" yaml:"backend" validate:"required,oneof=sqlite d1"`
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// BackfillDefaults inserts default settings that are missing from a
	// database that was already seeded. Categories, notes and shares are
	// never backfilled.
	BackfillDefaults bool `json:"backfill_defaults" yaml:"backfill_defaults"`

	D1 D1Config `json:"d1" yaml:"d1"`
}

// D1Config carries the binding for the remote D1 backend.
type D1Config struct {
	AccountID  string `json:"account_id" yaml:"account_id"`
	DatabaseID string `json:"database_id" yaml:"database_id"`
	APIToken   string `json:"api_token" yaml:"api_token"`
	// Endpoint overrides the Cloudflare API base URL.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty" validate:"omitempty,url"`
	// Timeout bounds a single query request. Zero means no timeout.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gte=0"`
	// Retries is the number of extra attempts after a transient failure.
	Retries int `json:"retries,omitempty" yaml:"retries,omitempty" validate:"gte=0,lte=10"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendD1     = "d1"
)

// Config validation errors.
var (
	ErrBackendEmpty    = errors.New("backend must not be empty")
	ErrBackendUnknown  = errors.New("unknown backend")
	ErrEndpointInvalid = errors.New("d1 endpoint must be a URL")
	ErrTimeoutInvalid  = errors.New("timeout must not be negative")
	ErrRetriesInvalid  = errors.New("retries must be between 0 and 10")
	ErrConfigInvalid   = errors.New("invalid config")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure. A missing D1 binding is not a validation
// failure; Initialize reports it as ErrConfiguration.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errors.Join(ErrConfigInvalid, err)
	}

	fe := verrs[0]
	switch fe.StructNamespace() {
	case "Config.Backend":
		if fe.Tag() == "required" {
			return ErrBackendEmpty
		}
		return ErrBackendUnknown
	case "Config.D1.Endpoint":
		return ErrEndpointInvalid
	case "Config.D1.Timeout":
		return ErrTimeoutInvalid
	case "Config.D1.Retries":
		return ErrRetriesInvalid
	}
	return errors.Join(ErrConfigInvalid, err)
}
