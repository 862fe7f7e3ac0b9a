package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv names the environment variable that pins the scan pool size.
const OverrideEnv = "SCAN_WORKERS"

// Count returns the number of workers for a task with the given CPU multiplier.
// GOMAXPROCS already reflects container CPU limits.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//
// The limit parameter caps the worker count. Use 0 for no limit.
// SCAN_WORKERS takes precedence when set to a positive integer.
func Count(multiplier float64, limit int) int {
	if override := os.Getenv(OverrideEnv); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return clamp(count, limit)
		}
	}

	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return clamp(workers, limit)
}

func clamp(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU). Scene scans
// spend nearly all their time in readdir and stat, so the builder uses this.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// Resolve returns configured when positive, otherwise ForIO(limit).
func Resolve(configured, limit int) int {
	if configured > 0 {
		return clamp(configured, limit)
	}
	return ForIO(limit)
}
