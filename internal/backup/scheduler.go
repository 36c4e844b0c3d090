// Package backup exports the dataset to JSON and uploads it to a WebDAV
// collection, on demand or on a recurring schedule derived from settings.
//
// A Scheduler owns at most one recurring job, named "auto-backup". Every
// UpdateSchedule call replaces that job under one lock, so there is never a
// moment with two live jobs. Call UpdateSchedule after every write to a
// backup.* or webdav.* setting.
package backup

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/xanote/internal/metrics"
	"github.com/mesh-intelligence/xanote/internal/retry"
	"github.com/mesh-intelligence/xanote/pkg/types"
)

// ErrNotConfigured is returned by RunNow when a WebDAV field is missing.
var ErrNotConfigured = errors.New("webdav is not configured")

// ErrStopped is returned by UpdateSchedule after Stop.
var ErrStopped = errors.New("backup scheduler stopped")

// State is the lifecycle state of the automatic backup job.
type State int

// Job states.
const (
	Idle State = iota
	Scheduled
)

func (s State) String() string {
	if s == Scheduled {
		return "scheduled"
	}
	return "idle"
}

// UploaderFunc builds the uploader for one run.
type UploaderFunc func(cfg Config) Uploader

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the zone schedules are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// WithUploader replaces the WebDAV uploader.
func WithUploader(f UploaderFunc) Option {
	return func(s *Scheduler) { s.newUploader = f }
}

// WithHTTPClient sets the client used by the WebDAV uploader.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Scheduler) { s.httpClient = c }
}

// WithRetryPolicy bounds each WebDAV upload.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Scheduler) { s.policy = p }
}

// WithSpec replaces the cron spec derived from the frequency. Any spec
// accepted by cron.ParseStandard is valid, including "@every 1s".
func WithSpec(spec string) Option {
	return func(s *Scheduler) { s.spec = spec }
}

// WithClock sets the time source used for file names and timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// Scheduler runs automatic backups.
type Scheduler struct {
	db          types.Preparer
	settings    Settings
	loc         *time.Location
	now         func() time.Time
	httpClient  *http.Client
	policy      retry.Policy
	newUploader UploaderFunc
	spec        string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	cron    *cron.Cron
	state   State
	jobs    map[cron.EntryID]string
	config  Config
	stopped bool
}

// NewScheduler returns a scheduler reading data from db and configuration
// from settings. No job is installed until UpdateSchedule.
func NewScheduler(db types.Preparer, settings Settings, opts ...Option) *Scheduler {
	s := &Scheduler{
		db:       db,
		settings: settings,
		now:      time.Now,
		jobs:     make(map[cron.EntryID]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.loc == nil {
		s.loc = defaultLocation()
	}
	if s.newUploader == nil {
		s.newUploader = func(cfg Config) Uploader {
			return NewWebDAV(cfg, s.httpClient, s.policy)
		}
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	logger := cron.PrintfLogger(log.StandardLogger())
	s.cron = cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	s.cron.Start()
	return s
}

func defaultLocation() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		log.WithError(err).Warnf("timezone %s unavailable, using UTC", DefaultTimezone)
		return time.UTC
	}
	return loc
}

// Location returns the zone schedules are evaluated in.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// UpdateSchedule removes the current job, reloads the configuration and
// installs a new job when it calls for one. On error the job stays removed.
func (s *Scheduler) UpdateSchedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	s.removeLocked()

	cfg, ok, err := LoadConfig(ctx, s.settings)
	if err != nil {
		log.WithError(err).Error("update backup schedule")
		return err
	}
	s.config = cfg
	if !ok {
		log.WithField("frequency", cfg.Frequency).Info("automatic backup disabled")
		return nil
	}

	spec := s.specFor(cfg.Frequency)
	id, err := s.cron.AddFunc(spec, func() { s.fire(cfg) })
	if err != nil {
		return err
	}
	s.jobs[id] = JobName
	s.state = Scheduled
	metrics.BackupScheduled.Set(1)

	next, _ := s.nextLocked()
	log.WithFields(log.Fields{
		"frequency": cfg.Frequency,
		"spec":      spec,
		"next":      next.Format(time.RFC3339),
	}).Info("automatic backup scheduled")
	return nil
}

// removeLocked drops the current job. The caller holds s.mu.
func (s *Scheduler) removeLocked() {
	for id := range s.jobs {
		s.cron.Remove(id)
		delete(s.jobs, id)
	}
	s.state = Idle
	metrics.BackupScheduled.Set(0)
}

// Stop removes the job, stops the runner and cancels a backup in progress.
// It waits for that backup to return. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.removeLocked()
	s.mu.Unlock()

	s.cancel()
	<-s.cron.Stop().Done()
}

// State returns the job state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Jobs returns the names of the live recurring jobs.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, e := range s.cron.Entries() {
		if name, ok := s.jobs[e.ID]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Next returns the next firing of the scheduled job. The boolean is false
// when no job is scheduled.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Scheduled {
		return time.Time{}, false
	}
	next, err := s.nextLocked()
	if err != nil {
		return time.Time{}, false
	}
	return next, true
}

func (s *Scheduler) specFor(f Frequency) string {
	if s.spec != "" {
		return s.spec
	}
	spec, _ := CronSpec(f)
	return spec
}

// nextLocked computes the next firing of the current configuration. The
// caller holds s.mu.
func (s *Scheduler) nextLocked() (time.Time, error) {
	if s.spec == "" {
		return NextRun(s.config.Frequency, s.loc, s.now())
	}
	sched, err := cron.ParseStandard(s.spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(s.now().In(s.loc)), nil
}

// fire runs one scheduled backup. Failures are logged; the job stays
// scheduled.
func (s *Scheduler) fire(cfg Config) {
	out := s.Run(s.ctx, cfg)
	out.Log(log.WithField("job", JobName))
}

// RunNow loads the current configuration and runs one backup regardless of
// the frequency.
func (s *Scheduler) RunNow(ctx context.Context) (Outcome, error) {
	cfg, _, err := LoadConfig(ctx, s.settings)
	if err != nil {
		return Outcome{}, err
	}
	if !cfg.HasWebDAV() {
		return Outcome{}, ErrNotConfigured
	}
	out := s.Run(ctx, cfg)
	out.Log(log.WithField("job", "manual"))
	return out, out.Err()
}

// Run executes one backup with cfg. The notes and database steps are both
// attempted. Bookkeeping runs only when both uploaded.
func (s *Scheduler) Run(ctx context.Context, cfg Config) Outcome {
	started := s.now()
	up := s.newUploader(cfg)
	out := Outcome{Started: started}

	out.Steps = append(out.Steps, s.backupNotes(ctx, up, started))
	out.Steps = append(out.Steps, s.backupDatabase(ctx, up, started))

	book := StepResult{Name: StepBookkeeping, BestEffort: true}
	if out.Err() != nil {
		book.Skipped = true
	} else {
		book.Err = s.updateLastBackup(ctx)
	}
	out.Steps = append(out.Steps, book)

	out.Finished = s.now()
	metrics.BackupFiringsTotal.WithLabelValues(metrics.Status(out.Err())).Inc()
	return out
}

func (s *Scheduler) backupNotes(ctx context.Context, up Uploader, now time.Time) StepResult {
	res := StepResult{Name: StepNotes, File: NotesFileName(now)}
	export, err := ExportNotes(ctx, s.db, now)
	if err != nil {
		res.Err = err
		return res
	}
	data, err := Encode(export)
	if err != nil {
		res.Err = err
		return res
	}
	res.Bytes = len(data)
	res.Err = up.Upload(ctx, res.File, data)
	return res
}

func (s *Scheduler) backupDatabase(ctx context.Context, up Uploader, now time.Time) StepResult {
	res := StepResult{Name: StepDatabase, File: DatabaseFileName(now)}
	export, failed := ExportDatabase(ctx, s.db)
	res.EmptyTables = failed
	data, err := Encode(export)
	if err != nil {
		res.Err = err
		return res
	}
	res.Bytes = len(data)
	res.Err = up.Upload(ctx, res.File, data)
	return res
}

func (s *Scheduler) updateLastBackup(ctx context.Context) error {
	ts := s.now().UTC().Format(TimestampLayout)
	if err := s.settings.Set(ctx, types.KeyBackupLastBackup, ts); err != nil {
		log.WithError(err).Warn("record last backup time")
		return err
	}
	return nil
}
