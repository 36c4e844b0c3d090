// Package d1test provides an in-process stand-in for the D1 HTTP query API,
// backed by an in-memory SQLite database, for use in tests.
package d1test

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/xanote/pkg/types"
)

// Binding values accepted by the fake.
const (
	AccountID  = "test-account"
	DatabaseID = "test-database"
	APIToken   = "test-token"
)

// Server is a fake D1 endpoint.
type Server struct {
	*httptest.Server

	db *sql.DB

	mu          sync.Mutex
	requests    int
	failNext    int
	failStatus  int
	failQueries []string
}

// NewServer starts a fake endpoint and registers cleanup with t.
func NewServer(t testing.TB) *Server {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open fake d1 database: %v", err)
	}
	db.SetMaxOpenConns(1)

	s := &Server{db: db}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(func() {
		s.Server.Close()
		db.Close()
	})
	return s
}

// Config returns a backend config bound to this server.
func (s *Server) Config() types.Config {
	return types.Config{
		Backend: types.BackendD1,
		D1: types.D1Config{
			AccountID:  AccountID,
			DatabaseID: DatabaseID,
			APIToken:   APIToken,
			Endpoint:   s.URL,
		},
	}
}

// Requests returns the number of query requests received.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// FailNext makes the next n requests answer with status.
func (s *Server) FailNext(n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
	s.failStatus = status
}

// FailQueriesContaining rejects every query whose SQL contains substr, the
// way D1 rejects a statement that fails to prepare.
func (s *Server) FailQueriesContaining(substr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failQueries = append(s.failQueries, substr)
}

type queryRequest struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

type info struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	want := fmt.Sprintf("/accounts/%s/d1/database/%s/query", AccountID, DatabaseID)
	if r.Method != http.MethodPost || r.URL.Path != want {
		writeError(w, http.StatusNotFound, 7404, "no route for "+r.Method+" "+r.URL.Path)
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+APIToken {
		writeError(w, http.StatusUnauthorized, 10000, "Authentication error")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, 7400, "invalid body: "+err.Error())
		return
	}

	s.mu.Lock()
	s.requests++
	if s.failNext > 0 {
		s.failNext--
		status := s.failStatus
		s.mu.Unlock()
		writeError(w, status, 7500, "injected failure")
		return
	}
	for _, substr := range s.failQueries {
		if strings.Contains(req.SQL, substr) {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, 7500, "injected query failure")
			return
		}
	}
	// One query at a time keeps changes accounting per request.
	defer s.mu.Unlock()

	results, meta, err := s.execute(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, 7500, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result": []any{map[string]any{
			"results": results,
			"success": true,
			"meta":    meta,
		}},
		"success":  true,
		"errors":   []info{},
		"messages": []info{},
	})
}

func (s *Server) execute(req queryRequest) ([]map[string]any, map[string]any, error) {
	var before int64
	if err := s.db.QueryRow(`SELECT total_changes()`).Scan(&before); err != nil {
		return nil, nil, err
	}

	rows, err := s.db.Query(req.SQL, req.Params...)
	if err != nil {
		return nil, nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, nil, err
	}

	results := []map[string]any{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			rows.Close()
			return nil, nil, err
		}
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				rec[c] = string(b)
			} else {
				rec[c] = vals[i]
			}
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, nil, err
	}
	rows.Close()

	var after, lastRowID int64
	if err := s.db.QueryRow(`SELECT total_changes(), last_insert_rowid()`).Scan(&after, &lastRowID); err != nil {
		return nil, nil, err
	}

	return results, map[string]any{
		"changes":      after - before,
		"last_row_id":  lastRowID,
		"duration":     0.1,
		"rows_read":    len(results),
		"rows_written": after - before,
	}, nil
}

func writeError(w http.ResponseWriter, status, code int, msg string) {
	writeJSON(w, status, map[string]any{
		"result":   nil,
		"success":  false,
		"errors":   []info{{Code: code, Message: msg}},
		"messages": []info{},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
