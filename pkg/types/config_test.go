package types

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr error
	}{
		{
			name:    "empty backend returns ErrBackendEmpty",
			config:  Config{Backend: "", DataDir: "/tmp/data"},
			wantErr: ErrBackendEmpty,
		},
		{
			name:    "unknown backend returns ErrBackendUnknown",
			config:  Config{Backend: "postgres", DataDir: "/tmp/data"},
			wantErr: ErrBackendUnknown,
		},
		{
			name:    "valid sqlite config",
			config:  Config{Backend: "sqlite", DataDir: "/tmp/data"},
			wantErr: nil,
		},
		{
			name:    "sqlite with empty DataDir is valid at config level",
			config:  Config{Backend: "sqlite", DataDir: ""},
			wantErr: nil,
		},
		{
			name:    "d1 without binding is valid at config level",
			config:  Config{Backend: "d1"},
			wantErr: nil,
		},
		{
			name:    "d1 endpoint must be a URL",
			config:  Config{Backend: "d1", D1: D1Config{Endpoint: "not a url"}},
			wantErr: ErrEndpointInvalid,
		},
		{
			name:    "negative timeout",
			config:  Config{Backend: "d1", D1: D1Config{Timeout: -time.Second}},
			wantErr: ErrTimeoutInvalid,
		},
		{
			name:    "too many retries",
			config:  Config{Backend: "d1", D1: D1Config{Retries: 11}},
			wantErr: ErrRetriesInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRowAccessors(t *testing.T) {
	r := Row{"s": "text", "b": []byte("bytes"), "i": int64(7), "f": float64(3), "n": nil}

	if got := r.String("s"); got != "text" {
		t.Errorf("String(s) = %q", got)
	}
	if got := r.String("b"); got != "bytes" {
		t.Errorf("String(b) = %q", got)
	}
	if got := r.String("missing"); got != "" {
		t.Errorf("String(missing) = %q", got)
	}
	if got := r.Int64("i"); got != 7 {
		t.Errorf("Int64(i) = %d", got)
	}
	if got := r.Int64("f"); got != 3 {
		t.Errorf("Int64(f) = %d", got)
	}
	if got := r.Int64("n"); got != 0 {
		t.Errorf("Int64(n) = %d", got)
	}

	// D1 sends a whole-valued REAL as an integer; SQLite as a float.
	fromD1 := NormalizeRow(map[string]any{"price": json.Number("2")})
	fromSQLite := NormalizeRow(map[string]any{"price": float64(2)})
	if fromD1.Float64("price") != fromSQLite.Float64("price") {
		t.Errorf("Float64 differs: %v vs %v", fromD1.Float64("price"), fromSQLite.Float64("price"))
	}
	if got := r.Float64("f"); got != 3 {
		t.Errorf("Float64(f) = %v", got)
	}
	if got := r.Float64("s"); got != 0 {
		t.Errorf("Float64(s) = %v", got)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateUninitialized: "uninitialized",
		StateBootstrapping: "bootstrapping",
		StateReady:         "ready",
		StateClosed:        "closed",
		State(99):          "unknown",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "x", "x"},
		{"int", 5, int64(5)},
		{"bool true", true, int64(1)},
		{"bool false", false, int64(0)},
		{"json integer", json.Number("42"), int64(42)},
		{"json float", json.Number("1.5"), 1.5},
		{"time", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), "2026-01-02T03:04:05Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeValue(tt.in); got != tt.want {
				t.Errorf("NormalizeValue(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}
