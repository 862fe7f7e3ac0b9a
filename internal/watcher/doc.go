// Package watcher turns filesystem notifications under watched projects into
// batches of scene-level change events.
//
// FSWatcher registers recursive fsnotify watches on project directories.
// Raw events are classified by project, scene and media type; paths that are
// not scene media are dropped. Events for the same path are debounced (the
// latest wins after DEBOUNCE of quiet) and released events are grouped into
// batches flushed every BATCH_INTERVAL or at BATCH_SIZE events.
//
// Directories created under a watched project are added to the watch set and
// the files already inside them are reported as created, so media written
// right after a mkdir is not missed.
//
// When fsnotify cannot be initialized New returns a Disabled watcher that
// reports "unavailable"; callers do not branch on watcher availability.
package watcher
