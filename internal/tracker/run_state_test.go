package tracker

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteRunStateWritesValidJSON(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	rs := RunState{
		RunID:       "abc",
		PID:         123,
		StartedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
		IsRunning:   true,
		ItemIndex:   2,
		ItemTotal:   5,
		Description: "sunset over water",
		CurrentStep: "await-images",
		Status:      StatusRunning,
	}
	if err := w.WriteRunState(rs); err != nil {
		t.Fatalf("WriteRunState error: %v", err)
	}

	b, err := os.ReadFile(filepath.Join(dir, "run_state.json"))
	if err != nil {
		t.Fatalf("read run_state.json: %v", err)
	}
	var v map[string]any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	for _, key := range []string{"is_running", "cancel_requested", "item_index", "images_saved"} {
		if _, ok := v[key]; !ok {
			t.Errorf("missing key %q in %s", key, b)
		}
	}

	got, err := w.LoadRunState()
	if err != nil || got == nil {
		t.Fatalf("LoadRunState = %v, %v", got, err)
	}
	if got.Description != rs.Description || got.ItemTotal != 5 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestLoadRunStateMissingOrCorrupt(t *testing.T) {
	w := NewWriter(t.TempDir())
	if rs, err := w.LoadRunState(); rs != nil || err != nil {
		t.Fatalf("missing file: got %v, %v", rs, err)
	}
	if err := os.WriteFile(w.RunStatePath, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	if rs, err := w.LoadRunState(); rs != nil || err != nil {
		t.Fatalf("corrupt file: got %v, %v", rs, err)
	}
}

func TestRunStateActive(t *testing.T) {
	tests := []struct {
		name string
		rs   *RunState
		want bool
	}{
		{"nil", nil, false},
		{"not running", &RunState{PID: os.Getpid()}, false},
		{"running in this process", &RunState{PID: os.Getpid(), IsRunning: true}, true},
		{"running in dead process", &RunState{PID: 999999999, IsRunning: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rs.Active(); got != tt.want {
				t.Errorf("Active() = %v, want %v", got, tt.want)
			}
		})
	}
}
