package types

// Category groups notes.
type Category struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// Note is a markdown document. Tags is a comma-separated list.
type Note struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	Tags       string `json:"tags"`
	CategoryID string `json:"category_id"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

// Share publishes a note read-only. Password and ExpiresAt are optional.
type Share struct {
	ID        string  `json:"id"`
	NoteID    string  `json:"note_id"`
	Password  *string `json:"password"`
	ExpiresAt *int64  `json:"expires_at"`
	CreatedAt int64   `json:"created_at"`
}

// TrashEntry is a deleted note kept for restore.
type TrashEntry struct {
	Note
	DeletedAt int64 `json:"deleted_at"`
}

// LogEntry is an append-only audit record. Details holds JSON text.
type LogEntry struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Action     string `json:"action"`
	TargetType string `json:"target_type,omitempty"`
	TargetID   string `json:"target_id,omitempty"`
	Details    any    `json:"details,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}
