package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/xanote/internal/metrics"
	"github.com/mesh-intelligence/xanote/internal/retry"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

// Uploader stores one backup file.
type Uploader interface {
	Upload(ctx context.Context, name string, content []byte) error
}

// UploadError is returned when the WebDAV server answers a PUT with a
// non-2xx status.
type UploadError struct {
	File       string
	Status     int
	StatusText string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("webdav upload %s failed: %d %s", e.File, e.Status, e.StatusText)
}

// Unwrap marks server-side and rate-limit failures as transient.
func (e *UploadError) Unwrap() error {
	if e.Status >= 500 || e.Status == http.StatusTooManyRequests {
		return types.ErrTransient
	}
	return nil
}

// WebDAV uploads files with a single authenticated PUT each. Collections
// are not created; the base URL must name an existing one.
type WebDAV struct {
	baseURL  string
	user     string
	password string
	http     *http.Client
	policy   retry.Policy
}

var _ Uploader = (*WebDAV)(nil)

// NewWebDAV returns an uploader for the WebDAV fields of cfg. A nil
// httpClient uses http.DefaultClient.
func NewWebDAV(cfg Config, httpClient *http.Client, policy retry.Policy) *WebDAV {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &WebDAV{
		baseURL:  strings.TrimRight(cfg.WebDAVURL, "/") + "/",
		user:     cfg.WebDAVUser,
		password: cfg.WebDAVPassword,
		http:     httpClient,
		policy:   policy,
	}
}

// URL returns the address name is uploaded to.
func (w *WebDAV) URL(name string) string {
	return w.baseURL + name
}

// Upload PUTs content as name under the base URL.
func (w *WebDAV) Upload(ctx context.Context, name string, content []byte) error {
	err := retry.Do(ctx, w.policy, "webdav upload", func(ctx context.Context) error {
		return w.put(ctx, name, content)
	})
	metrics.BackupUploadsTotal.WithLabelValues(metrics.Status(err)).Inc()
	if err != nil {
		return err
	}
	metrics.BackupUploadBytesTotal.Add(float64(len(content)))
	log.WithFields(log.Fields{"file": name, "bytes": len(content)}).Debug("uploaded backup file")
	return nil
}

func (w *WebDAV) put(ctx context.Context, name string, content []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, w.URL(name), bytes.NewReader(content))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.SetBasicAuth(w.user, w.password)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: webdav upload %s: %w", types.ErrTransient, name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UploadError{File: name, Status: resp.StatusCode, StatusText: http.StatusText(resp.StatusCode)}
	}
	return nil
}
