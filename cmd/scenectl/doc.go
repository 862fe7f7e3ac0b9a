// Command scenectl answers scene video questions for a media root without a
// running server. Each invocation opens the configured cache backend, runs
// one operation through the lookup service and exits.
//
//	scenectl --root /projects lookup p1 scene_3
//	scenectl lookup p1 scene_1 scene_2 last
//	scenectl videos p1
//	scenectl status p1 --json
//	scenectl rebuild p1 --force
//	scenectl --cache bolt --cache-addr /var/cache/scenes.db stats
//	scenectl watch p1 --for 30s
//
// Flags fall back to the server configuration (MEDIA_ROOT, CACHE_BACKEND,
// CACHE_ADDR and the optional SCENE_INDEX_CONFIG file). With the bolt or
// redis backend, snapshots written by one invocation are reused by the next.
package main
