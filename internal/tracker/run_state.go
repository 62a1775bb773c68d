package tracker

import "time"

// Run status values written to run_state.json.
const (
	StatusStarting  = "starting"
	StatusRunning   = "running"
	StatusStopping  = "stopping"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
	StatusFailed    = "failed"
)

type RunState struct {
	RunID           string    `json:"run_id"`
	PID             int       `json:"pid"`
	StartedAt       time.Time `json:"started_at"`
	UpdatedAt       time.Time `json:"updated_at"`
	IsRunning       bool      `json:"is_running"`
	CancelRequested bool      `json:"cancel_requested"`
	ItemIndex       int       `json:"item_index"`
	ItemTotal       int       `json:"item_total"`
	Description     string    `json:"description,omitempty"`
	CurrentStep     string    `json:"current_step,omitempty"`
	ImagesSaved     int       `json:"images_saved"`
	ImagesFailed    int       `json:"images_failed,omitempty"`
	ItemsFailed     int       `json:"items_failed,omitempty"`
	Status          string    `json:"status"`
	LastError       string    `json:"last_error,omitempty"`
}
