package types

// Setting keys read or written by the core.
const (
	KeyInstalled = "system.installed"
	KeyLanguage  = "language"

	KeyBackupFrequency  = "backup.frequency"
	KeyBackupLastBackup = "backup.last_backup"

	KeyWebDAVURL      = "webdav.url"
	KeyWebDAVUser     = "webdav.user"
	KeyWebDAVPassword = "webdav.password"

	KeySiteTitle        = "site.title"
	KeySiteLogo         = "site.logo"
	KeySiteFavicon      = "site.favicon"
	KeySiteAvatarPrefix = "site.avatar_prefix"
	KeyAdminEmail       = "admin.email"
	KeyUploadMaxSize    = "upload.max_file_size"
)

// Setting prefixes.
const (
	PrefixBackup = "backup."
	PrefixWebDAV = "webdav."
)

// InstalledValue is the system.installed value that marks an installed system.
const InstalledValue = "1"

// Setting is one row of the settings table.
type Setting struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	UpdatedAt int64  `json:"updated_at"`
}
