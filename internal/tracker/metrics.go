package tracker

import (
	"encoding/json"
	"os"
	"time"
)

// RunMetrics accumulates totals across every batch run from one state
// directory.
type RunMetrics struct {
	StartedAt      time.Time  `json:"started_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TotalRuns      int        `json:"total_runs"`
	ItemsProcessed int        `json:"items_processed"`
	ItemsFailed    int        `json:"items_failed"`
	ImagesSaved    int        `json:"images_saved"`
	LastRunID      string     `json:"last_run_id,omitempty"`
}

// ItemDelta is what one finished item adds to the totals.
type ItemDelta struct {
	Images int
	Failed bool
}

func (w *Writer) LoadMetrics() (*RunMetrics, error) {
	b, err := os.ReadFile(w.MetricsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m RunMetrics
	if err := json.Unmarshal(b, &m); err != nil {
		// Corrupted metrics file: treat as no metrics.
		return nil, nil
	}
	return &m, nil
}

func (w *Writer) SaveMetrics(m *RunMetrics) error {
	return writeJSONAtomic(w.MetricsPath, m)
}

func (w *Writer) loadOrInitMetrics(runID string) (*RunMetrics, error) {
	m, err := w.LoadMetrics()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if m == nil {
		m = &RunMetrics{StartedAt: now}
	}
	if m.StartedAt.IsZero() {
		m.StartedAt = now
	}
	m.UpdatedAt = now
	m.LastRunID = runID
	return m, nil
}

// BeginRun counts a new run and clears the previous completion time.
func (w *Writer) BeginRun(runID string) {
	m, err := w.loadOrInitMetrics(runID)
	if err != nil || m == nil {
		return
	}
	m.TotalRuns++
	m.CompletedAt = nil
	_ = w.SaveMetrics(m)
}

// AddItem folds one finished item into the totals.
func (w *Writer) AddItem(runID string, delta ItemDelta) {
	m, err := w.loadOrInitMetrics(runID)
	if err != nil || m == nil {
		return
	}
	m.ItemsProcessed++
	if delta.Failed {
		m.ItemsFailed++
	}
	m.ImagesSaved += delta.Images
	_ = w.SaveMetrics(m)
}

func (w *Writer) MarkComplete(runID string) {
	m, err := w.loadOrInitMetrics(runID)
	if err != nil || m == nil {
		return
	}
	if m.CompletedAt == nil {
		now := time.Now()
		m.CompletedAt = &now
	}
	_ = w.SaveMetrics(m)
}
