// Package indexer builds ProjectIndex snapshots from a project media tree.
//
// A full build lists the scene directories of a project once and fans the
// scenes out to a bounded worker pool; each worker lists the video, audio and
// images sub-directories of its scene and probes every recognized media file.
// Results land in per-scene slots, so the snapshot is assembled without
// locking and published only when complete.
//
// Builds are single-flight per project. Build joins a running scan and
// returns its result; TryBuild returns immediately when one is running.
//
// Cheaper paths exist for single scenes: SceneVideo lists only a scene's
// video directory to answer a lookup, ScanScene rebuilds one scene entry,
// and ResolveAlias reads the highest numbered scene for "scene_last".
//
// A project directory that does not exist produces an empty snapshot, not an
// error. Hidden files and directories (prefixed with '.') are skipped.
package indexer
