package tracker

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
)

// Lock is the content of the lock file held by a running batch.
type Lock struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	RunID     string    `json:"run_id"`
}

// ErrLockHeld is returned when another live process is already running a
// batch from the same state directory.
var ErrLockHeld = errors.New("another batch is already running")

// AcquireLock takes the run lock. A lock left by a dead process is replaced.
// The returned func releases it.
func (w *Writer) AcquireLock(runID string) (func() error, error) {
	pid := os.Getpid()

	l := Lock{PID: pid, StartedAt: time.Now(), RunID: runID}
	data, err := json.MarshalIndent(l, "", "    ")
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(w.LockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			if b, readErr := os.ReadFile(w.LockPath); readErr == nil {
				var existing Lock
				if json.Unmarshal(b, &existing) == nil && existing.PID > 0 {
					if processAlive(existing.PID) {
						return nil, fmt.Errorf("%w by pid %d (run_id=%s)", ErrLockHeld, existing.PID, existing.RunID)
					}
					// Stale: retry once after removing it.
					if removeErr := os.Remove(w.LockPath); removeErr == nil {
						return w.AcquireLock(runID)
					}
				}
			}
			return nil, fmt.Errorf("%w (lock file exists)", ErrLockHeld)
		}
		return nil, err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(w.LockPath)
		return nil, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(w.LockPath)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(w.LockPath)
		return nil, err
	}

	release := func() error {
		err := os.Remove(w.LockPath)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return release, nil
}

// ReadLock returns the current lock, or nil when none is held by a live
// process.
func (w *Writer) ReadLock() (*Lock, error) {
	b, err := os.ReadFile(w.LockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var l Lock
	if err := json.Unmarshal(b, &l); err != nil || l.PID <= 0 || !processAlive(l.PID) {
		return nil, nil
	}
	return &l, nil
}

func processAlive(pid int) bool {
	// Signal 0 only checks that the process exists.
	err := syscall.Kill(pid, 0)
	return err == nil
}
