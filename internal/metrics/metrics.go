// Package metrics declares the Prometheus collectors exported by xanote.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status label values.
const (
	Fail = "fail"
	Ok   = "ok"
)

// Collectors for persistence, settings and backup.
var (
	StatementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xanote_statements_total",
		Help: "Cumulative number of statement executions.",
	}, []string{"backend", "op", "status"})
	SettingsLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xanote_settings_cache_lookups_total",
		Help: "Cumulative number of settings cache lookups by result (hit, miss, absent).",
	}, []string{"result"})
	BackupFiringsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xanote_backup_firings_total",
		Help: "Cumulative number of backup runs.",
	}, []string{"status"})
	BackupUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xanote_backup_uploads_total",
		Help: "Cumulative number of WebDAV uploads.",
	}, []string{"status"})
	BackupUploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "xanote_backup_upload_bytes_total",
		Help: "Cumulative number of bytes uploaded to WebDAV.",
	})
	BackupScheduled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "xanote_backup_scheduled",
		Help: "1 when an automatic backup job is scheduled, 0 otherwise.",
	})
)

// Status returns Ok for a nil error and Fail otherwise.
func Status(err error) string {
	if err != nil {
		return Fail
	}
	return Ok
}
