/*
Package cache implements the scene index cache.

A SceneCache sits on a Backend and stores three kinds of keys, all under the
"scene_index:" namespace:

	lookup:<project>:<scene>   resolved video path of one scene (LOOKUP_TTL)
	project:<project>          full ProjectIndex snapshot (INDEX_TTL)
	stale:<project>:<scene>    time of the last point invalidation of a scene

Values are JSON. A cached lookup is verified against the filesystem before it
is returned; a dangling path is deleted so the stat is not repeated. Stale
markers let a point invalidation outrank an older snapshot without throwing
the snapshot away: callers re-scan a marked scene until a snapshot whose scan
started after the marker is stored.

# Backends

  - MemoryBackend: sharded expirable LRU, the default.
  - BoltBackend: single bbolt file, keeps a warm index across restarts.
  - RedisBackend: networked store shared by processes on one host.

Every backend failure is wrapped in ErrBackendUnavailable. SceneCache counts
it, logs a warning and continues as if the key were absent.
*/
package cache
