// Package audit records and queries the append-only action log kept in the
// logs table.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/xanote/pkg/types"
)

// Actions recorded in the log.
const (
	ActionLogin               = "login"
	ActionLogout              = "logout"
	ActionCreateNote          = "create_note"
	ActionUpdateNote          = "update_note"
	ActionDeleteNote          = "delete_note"
	ActionRestoreNote         = "restore_note"
	ActionPermanentDeleteNote = "permanent_delete_note"
	ActionCreateShare         = "create_share"
	ActionDeleteShare         = "delete_share"
	ActionViewShare           = "view_share"
	ActionCreateCategory      = "create_category"
	ActionUpdateCategory      = "update_category"
	ActionDeleteCategory      = "delete_category"
	ActionUpdateSettings      = "update_settings"
	ActionExportData          = "export_data"
	ActionImportData          = "import_data"
	ActionBackupData          = "backup_data"
)

// Defaults for List and CleanOld.
const (
	DefaultLimit     = 50
	DefaultRetention = 90
)

// ErrUserRequired is returned by List when the filter names no user.
var ErrUserRequired = errors.New("audit: user id is required")

// Params describes one action to record. Details, when not nil, is stored
// as JSON text.
type Params struct {
	UserID     string
	Action     string
	TargetType string
	TargetID   string
	Details    any
	IPAddress  string
	UserAgent  string
}

// Filter selects log entries for one user.
type Filter struct {
	UserID     string
	Action     string
	TargetType string
	// Start and End bound created_at (epoch ms, inclusive). Zero means
	// unbounded.
	Start  int64
	End    int64
	Limit  int
	Offset int
}

// Page is one page of log entries, newest first, with the total number of
// matching entries.
type Page struct {
	Entries []types.LogEntry
	Total   int64
}

// Service reads and writes the audit log.
type Service struct {
	db  types.Preparer
	now func() time.Time
}

// New returns a Service over db.
func New(db types.Preparer) *Service {
	return &Service{db: db, now: time.Now}
}

// Log records an action. Failures are logged and otherwise ignored so that
// auditing never fails the action being audited.
func (s *Service) Log(ctx context.Context, p Params) {
	if err := s.insert(ctx, p); err != nil {
		log.WithError(err).WithField("action", p.Action).Error("record audit entry")
	}
}

func (s *Service) insert(ctx context.Context, p Params) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate id: %w", err)
	}

	var details any
	if p.Details != nil {
		b, err := json.Marshal(p.Details)
		if err != nil {
			return fmt.Errorf("encode details: %w", err)
		}
		details = string(b)
	}

	_, err = s.db.Prepare(`INSERT INTO logs
		(id, user_id, action, target_type, target_id, details, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`).Run(ctx,
		id.String(), p.UserID, p.Action,
		nullable(p.TargetType), nullable(p.TargetID), details,
		nullable(p.IPAddress), nullable(p.UserAgent),
		s.now().UnixMilli(),
	)
	return err
}

// List returns the entries matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	if f.UserID == "" {
		return Page{}, ErrUserRequired
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	offset := max(f.Offset, 0)

	where := []string{"user_id = ?"}
	args := []any{f.UserID}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.TargetType != "" {
		where = append(where, "target_type = ?")
		args = append(args, f.TargetType)
	}
	if f.Start != 0 {
		where = append(where, "created_at >= ?")
		args = append(args, f.Start)
	}
	if f.End != 0 {
		where = append(where, "created_at <= ?")
		args = append(args, f.End)
	}
	clause := " WHERE " + strings.Join(where, " AND ")

	row, err := s.db.Prepare(`SELECT COUNT(*) AS count FROM logs` + clause).Get(ctx, args...)
	if err != nil {
		return Page{}, fmt.Errorf("count logs: %w", err)
	}

	rows, err := s.db.Prepare(`SELECT * FROM logs`+clause+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`).
		All(ctx, append(args, limit, offset)...)
	if err != nil {
		return Page{}, fmt.Errorf("list logs: %w", err)
	}

	page := Page{Total: row.Int64("count"), Entries: make([]types.LogEntry, 0, len(rows))}
	for _, r := range rows {
		page.Entries = append(page.Entries, entryFromRow(r))
	}
	return page, nil
}

// CleanOld deletes entries older than days days and returns how many were
// removed. A non-positive days uses DefaultRetention.
func (s *Service) CleanOld(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = DefaultRetention
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	res, err := s.db.Prepare(`DELETE FROM logs WHERE created_at < ?`).Run(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("clean logs: %w", err)
	}
	return res.Changes, nil
}

func entryFromRow(r types.Row) types.LogEntry {
	e := types.LogEntry{
		ID:         r.String("id"),
		UserID:     r.String("user_id"),
		Action:     r.String("action"),
		TargetType: r.String("target_type"),
		TargetID:   r.String("target_id"),
		IPAddress:  r.String("ip_address"),
		UserAgent:  r.String("user_agent"),
		CreatedAt:  r.Int64("created_at"),
	}
	if raw := r.String("details"); raw != "" {
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			e.Details = raw
		} else {
			e.Details = v
		}
	}
	return e
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
