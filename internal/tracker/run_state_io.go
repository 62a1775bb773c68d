package tracker

import (
	"encoding/json"
	"os"
)

// LoadRunState reads run_state.json. A missing or corrupt file reads as nil.
func (w *Writer) LoadRunState() (*RunState, error) {
	b, err := os.ReadFile(w.RunStatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var rs RunState
	if err := json.Unmarshal(b, &rs); err != nil {
		return nil, nil
	}
	return &rs, nil
}

// Active reports whether rs describes a run whose process is still alive.
func (rs *RunState) Active() bool {
	return rs != nil && rs.IsRunning && rs.PID > 0 && processAlive(rs.PID)
}
