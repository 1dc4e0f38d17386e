package pipeline

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrLocked means another pipeline run currently holds the lock file.
var ErrLocked = errors.New("pipeline run already in progress")

// RunLock is an advisory filesystem lock keyed by process start time.
// It only guards against overlapping cron invocations on one host; the
// window between the staleness check and the create is unsynchronized,
// so two invocations racing at exactly the wrong moment can both run.
// That limitation is accepted: each row transition is conditional on the
// previous status, so a double run wastes work but does not corrupt state.
type RunLock struct {
	Path       string
	StaleAfter time.Duration
}

// Acquire creates the lock file, taking over a stale one left behind by
// a crashed run.
func (l *RunLock) Acquire() error {
	if info, err := os.Stat(l.Path); err == nil {
		if time.Since(info.ModTime()) < l.StaleAfter {
			return fmt.Errorf("%w (lock %s age %s)", ErrLocked, l.Path, time.Since(info.ModTime()).Round(time.Second))
		}
		// stale lock from an abandoned run
		if err := os.Remove(l.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
	}

	f, err := os.OpenFile(l.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return ErrLocked
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "%d %s\n", os.Getpid(), time.Now().Format(time.RFC3339))
	return err
}

// Release removes the lock file. Safe to call when the lock was lost.
func (l *RunLock) Release() {
	_ = os.Remove(l.Path)
}
