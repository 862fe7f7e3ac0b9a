// Package workers sizes the goroutine pools used for filesystem scans.
//
// Worker counts derive from GOMAXPROCS, which honours container CPU quotas,
// scaled by a per-task multiplier and capped by a caller supplied limit.
// The SCAN_WORKERS environment variable overrides the computed value.
package workers
