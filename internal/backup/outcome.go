package backup

import (
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// Step names.
const (
	StepNotes       = "notes"
	StepDatabase    = "database"
	StepBookkeeping = "bookkeeping"
)

// StepResult is the outcome of one backup step.
type StepResult struct {
	Name    string
	File    string
	Bytes   int
	Err     error
	Skipped bool
	// BestEffort steps are logged but never fail the run.
	BestEffort bool
	// EmptyTables lists tables exported as empty lists after a read failure.
	EmptyTables []string
}

// Outcome is the result of one backup run.
type Outcome struct {
	Started  time.Time
	Finished time.Time
	Steps    []StepResult
}

// Err joins the errors of every step that is not best-effort. It is nil when
// the run succeeded.
func (o Outcome) Err() error {
	var errs []error
	for _, s := range o.Steps {
		if s.Err != nil && !s.BestEffort {
			errs = append(errs, s.Err)
		}
	}
	return errors.Join(errs...)
}

// Step returns the named step result.
func (o Outcome) Step(name string) (StepResult, bool) {
	for _, s := range o.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return StepResult{}, false
}

// Log writes one entry summarising the run.
func (o Outcome) Log(logger log.FieldLogger) {
	fields := log.Fields{"duration": o.Finished.Sub(o.Started)}
	for _, s := range o.Steps {
		switch {
		case s.Skipped:
			fields[s.Name] = "skipped"
		case s.Err != nil:
			fields[s.Name] = s.Err.Error()
		default:
			fields[s.Name] = "ok"
		}
		if len(s.EmptyTables) > 0 {
			fields["empty_tables"] = s.EmptyTables
		}
	}
	entry := logger.WithFields(fields)
	if err := o.Err(); err != nil {
		entry.WithError(err).Error("backup failed")
		return
	}
	entry.Info("backup completed")
}
