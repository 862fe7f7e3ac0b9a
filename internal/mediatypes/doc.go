// Package mediatypes provides the extension tables and media-type constants
// shared by the indexer, the watcher and the HTTP layer.
//
// This package is a dependency-free foundation that can be imported anywhere
// without creating import cycles.
//
// # Media Types
//
//	mediatypes.MediaTypeVideo // scene_<n>/video/*.mp4, *.mov, ...
//	mediatypes.MediaTypeAudio // scene_<n>/audio/*.mp3, *.wav, ...
//	mediatypes.MediaTypeImage // scene_<n>/images/*.png, *.jpg, ...
//	mediatypes.MediaTypeOther // anything else, never indexed
//
// # Extension Detection
//
//	ext := strings.ToLower(filepath.Ext(filename))
//	switch mediatypes.GetMediaType(ext) {
//	case mediatypes.MediaTypeVideo:
//	    // Handle video
//	}
//
// Subdirectories maps each type to the directory name a scene stores it in;
// note the image directory is the plural "images".
package mediatypes
