package mediatypes

import (
	"path/filepath"
	"strings"
)

// MediaType represents the kind of media stored under a scene.
type MediaType string

const (
	// MediaTypeVideo represents a rendered or generated video clip.
	MediaTypeVideo MediaType = "video"
	// MediaTypeAudio represents narration, music or effects audio.
	MediaTypeAudio MediaType = "audio"
	// MediaTypeImage represents a still image or frame.
	MediaTypeImage MediaType = "image"
	// MediaTypeOther represents an unknown or unsupported file type.
	MediaTypeOther MediaType = "other"
)

// AllMediaTypes lists the recognized media types in reporting order.
var AllMediaTypes = []MediaType{MediaTypeVideo, MediaTypeAudio, MediaTypeImage}

// Subdirectories maps each media type to the directory name used inside a
// scene directory (scene_<n>/video, scene_<n>/audio, scene_<n>/images).
var Subdirectories = map[MediaType]string{
	MediaTypeVideo: "video",
	MediaTypeAudio: "audio",
	MediaTypeImage: "images",
}

// VideoExtensions maps file extensions to whether they are supported video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".avi":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
}

// AudioExtensions maps file extensions to whether they are supported audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".aac":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
}

// ImageExtensions maps file extensions to whether they are supported image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",

	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
}

// GetMediaType returns the MediaType for a given file extension.
// The extension should be lowercase and include the leading dot (e.g., ".mp4").
// Returns MediaTypeOther if the extension is not recognized.
func GetMediaType(ext string) MediaType {
	switch {
	case VideoExtensions[ext]:
		return MediaTypeVideo
	case AudioExtensions[ext]:
		return MediaTypeAudio
	case ImageExtensions[ext]:
		return MediaTypeImage
	}
	return MediaTypeOther
}

// FromPath classifies a file path by its extension, case-insensitively.
func FromPath(path string) MediaType {
	return GetMediaType(strings.ToLower(filepath.Ext(path)))
}

// Format returns the lowercase extension of path without its leading dot.
func Format(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// GetMimeType returns the MIME type for a given file extension.
// Returns "application/octet-stream" if the extension is not recognized.
func GetMimeType(ext string) string {
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsMediaFile returns true if the extension represents a supported media file.
func IsMediaFile(ext string) bool {
	return GetMediaType(ext) != MediaTypeOther
}

// ForSubdirectory returns the media type stored in the named scene
// sub-directory, or MediaTypeOther for unrelated directories.
func ForSubdirectory(name string) MediaType {
	for mt, dir := range Subdirectories {
		if dir == name {
			return mt
		}
	}
	return MediaTypeOther
}
