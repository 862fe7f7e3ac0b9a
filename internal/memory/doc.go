// Package memory sets the Go memory limit for containerised deployments and
// applies backpressure to project scans when the heap approaches it.
//
// [ConfigureFromEnv] reads MEMORY_LIMIT (bytes, usually from the Kubernetes
// Downward API) and MEMORY_RATIO (default 0.85) and calls
// debug.SetMemoryLimit. An explicit GOMEMLIMIT always wins.
//
// A [Monitor] samples the heap every few seconds. Once usage crosses the
// pause mark, [Monitor.WaitIfPaused] blocks the index builder before it hands
// the next scene directory to a worker; scans resume once usage falls below
// the resume mark. Large projects therefore slow down instead of pushing the
// process into an OOM kill.
package memory
