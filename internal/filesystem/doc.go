/*
Package filesystem provides resilient filesystem operations with automatic retry logic
for NFS stale file handle errors.

Scene trees are frequently served from network mounts. When a render farm replaces a
file the client may briefly see ESTALE for paths that still exist. The index builder,
the direct scene scan and the cached-path existence check all go through this package
so those transient errors are retried instead of surfacing as "video not found".

# Usage

	entries, err := filesystem.ReadDirWithRetry(sceneDir, filesystem.DefaultRetryConfig())
	if err != nil {
	    return err
	}

	if !filesystem.Exists(cachedPath) {
	    // evict the cached lookup
	}

# Retry Behavior

The retry logic implements exponential backoff with the following defaults:
  - MaxRetries: 3 attempts
  - InitialBackoff: 50ms
  - MaxBackoff: 500ms

Only NFS stale file handle errors (ESTALE) trigger retries. All other errors
fail immediately without retry attempts.

# Metrics

Operation latency, errors and retry outcomes are reported through the Observer
registered with SetObserver. Not-exist results are reported as successful
operations since they are ordinary answers for a lookup.
*/
package filesystem
