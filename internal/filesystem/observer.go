package filesystem

import (
	"errors"
	"io/fs"
	"time"
)

// Observer records filesystem operation metrics. Implementations are provided
// by the metrics package to break the import cycle between filesystem and metrics.
type Observer interface {
	// ObserveOperation records duration and error status for a filesystem operation.
	// operation is the fs operation type: "stat" or "readdir".
	ObserveOperation(operation string, durationSeconds float64, err error)

	ObserveRetryAttempt(operation string)
	ObserveRetrySuccess(operation string)
	ObserveRetryFailure(operation string)
	ObserveStaleError(operation string)
}

// defaultObserver is the package-level observer set at startup.
// If nil, metric recording is silently skipped (safe for tests).
var defaultObserver Observer

// SetObserver sets the package-level metrics observer.
// Call this once at startup after creating the observer implementation.
func SetObserver(o Observer) {
	defaultObserver = o
}

func observeOperation(operation string, start time.Time, err error) {
	if defaultObserver == nil {
		return
	}
	// A missing file is an expected answer for the index, not a failure.
	if errors.Is(err, fs.ErrNotExist) {
		err = nil
	}
	defaultObserver.ObserveOperation(operation, time.Since(start).Seconds(), err)
}
