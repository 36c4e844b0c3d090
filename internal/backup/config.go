package backup

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata" // DefaultTimezone must load on hosts without zoneinfo

	"github.com/robfig/cron/v3"

	"github.com/mesh-intelligence/xanote/pkg/types"
)

// Frequency is the value of the backup.frequency setting.
type Frequency string

// Known frequencies.
const (
	Manual  Frequency = "manual"
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// JobName names the recurring automatic backup job.
const JobName = "auto-backup"

// DefaultTimezone is the zone automatic backups are scheduled in.
const DefaultTimezone = "Asia/Shanghai"

var cronSpecs = map[Frequency]string{
	Daily:   "0 0 * * *",
	Weekly:  "0 0 * * 1",
	Monthly: "0 0 1 * *",
}

// CronSpec returns the five-field cron expression for f. The boolean is
// false for manual and unknown frequencies.
func CronSpec(f Frequency) (string, bool) {
	spec, ok := cronSpecs[f]
	return spec, ok
}

// NextRun returns the first firing for f strictly after after, evaluated
// in loc.
func NextRun(f Frequency, loc *time.Location, after time.Time) (time.Time, error) {
	spec, ok := CronSpec(f)
	if !ok {
		return time.Time{}, fmt.Errorf("frequency %q has no schedule", f)
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", spec, err)
	}
	if s, ok := sched.(*cron.SpecSchedule); ok {
		s.Location = loc
	}
	return sched.Next(after), nil
}

// Config is the backup configuration held in settings.
type Config struct {
	Frequency      Frequency
	WebDAVURL      string
	WebDAVUser     string
	WebDAVPassword string
	LastBackup     string
}

// HasWebDAV reports whether every WebDAV field is set.
func (c Config) HasWebDAV() bool {
	return c.WebDAVURL != "" && c.WebDAVUser != "" && c.WebDAVPassword != ""
}

// Scheduled reports whether c calls for a recurring job.
func (c Config) Scheduled() bool {
	_, ok := CronSpec(c.Frequency)
	return ok && c.HasWebDAV()
}

// SettingsReader reads settings by key prefix.
type SettingsReader interface {
	GetAll(ctx context.Context, prefix string) (map[string]string, error)
}

// Settings is the settings access the scheduler needs.
type Settings interface {
	SettingsReader
	Set(ctx context.Context, key, value string) error
}

// LoadConfig reads the backup.* and webdav.* settings from the backend.
// The boolean reports whether an automatic job should be scheduled: it is
// false for manual or unknown frequencies and when any WebDAV field is
// missing or empty.
func LoadConfig(ctx context.Context, s SettingsReader) (Config, bool, error) {
	b, err := s.GetAll(ctx, types.PrefixBackup)
	if err != nil {
		return Config{}, false, fmt.Errorf("load backup settings: %w", err)
	}
	w, err := s.GetAll(ctx, types.PrefixWebDAV)
	if err != nil {
		return Config{}, false, fmt.Errorf("load webdav settings: %w", err)
	}

	cfg := Config{
		Frequency:      Frequency(b[types.KeyBackupFrequency]),
		LastBackup:     b[types.KeyBackupLastBackup],
		WebDAVURL:      w[types.KeyWebDAVURL],
		WebDAVUser:     w[types.KeyWebDAVUser],
		WebDAVPassword: w[types.KeyWebDAVPassword],
	}
	if cfg.Frequency == "" {
		cfg.Frequency = Manual
	}
	return cfg, cfg.Scheduled(), nil
}
