package store

import (
	"context"
	"fmt"

	"github.com/mesh-intelligence/xanote/pkg/types"
)

// SettingWriter writes one setting.
type SettingWriter interface {
	Set(ctx context.Context, key, value string) error
}

// InstallParams are the values supplied when installing.
type InstallParams struct {
	SiteTitle  string
	AdminEmail string
}

// DefaultUploadMaxSize is the upload limit, in megabytes, written at install.
const DefaultUploadMaxSize = "10"

// InstallSettings returns the settings written by Install, in write order.
// system.installed is always last.
func InstallSettings(p InstallParams) [][2]string {
	return [][2]string{
		{types.KeySiteTitle, p.SiteTitle},
		{types.KeyAdminEmail, p.AdminEmail},
		{types.KeySiteLogo, ""},
		{types.KeySiteFavicon, ""},
		{types.KeySiteAvatarPrefix, ""},
		{types.KeyUploadMaxSize, DefaultUploadMaxSize},
		{types.KeyBackupFrequency, "manual"},
		{types.KeyWebDAVURL, ""},
		{types.KeyWebDAVUser, ""},
		{types.KeyWebDAVPassword, ""},
		{types.KeyInstalled, types.InstalledValue},
	}
}

// Install writes the install-time settings through w. It returns
// types.ErrAlreadyInstalled when a is already installed. A failure part way
// leaves the system uninstalled, since system.installed is written last.
func Install(ctx context.Context, a types.Adapter, w SettingWriter, p InstallParams) error {
	if a.IsInstalled(ctx) {
		return types.ErrAlreadyInstalled
	}
	if p.SiteTitle == "" {
		return fmt.Errorf("install: site title is required")
	}
	for _, kv := range InstallSettings(p) {
		if err := w.Set(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("install: %w", err)
		}
	}
	return nil
}
