package scene

import (
	"path/filepath"
	"strings"

	"scene-index/internal/mediatypes"
)

// Location is the project and scene a path belongs to.
type Location struct {
	ProjectID string
	SceneID   string
	MediaType mediatypes.MediaType
}

// splitProject returns the project id for path and the path segments that
// follow it. Paths under root use the first segment relative to root; other
// paths use the segment after "projects".
func splitProject(root, path string) (string, []string, bool) {
	if root != "" {
		if rel, err := filepath.Rel(root, path); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
			segments := strings.Split(filepath.ToSlash(rel), "/")
			return segments[0], segments[1:], segments[0] != ""
		}
	}

	segments := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	for i := 0; i+1 < len(segments); i++ {
		if segments[i] == "projects" && segments[i+1] != "" {
			return segments[i+1], segments[i+2:], true
		}
	}
	return "", nil, false
}

// ProjectOf returns the project id for path.
func ProjectOf(root, path string) (string, bool) {
	project, _, ok := splitProject(root, path)
	return project, ok
}

// ClassifyPath reports whether path is a scene media file and where it lives.
// The extension must be a recognized media type and a directory segment
// below the project must name a scene.
func ClassifyPath(root, path string) (Location, bool) {
	mt := mediatypes.FromPath(path)
	if mt == mediatypes.MediaTypeOther {
		return Location{}, false
	}

	project, rest, ok := splitProject(root, path)
	if !ok || len(rest) < 2 {
		return Location{}, false
	}

	// The last segment is the file itself.
	for _, segment := range rest[:len(rest)-1] {
		if id, ok := ParseDirName(segment); ok {
			return Location{ProjectID: project, SceneID: id, MediaType: mt}, true
		}
	}
	return Location{}, false
}

// SceneDirOf returns the project and scene for a directory path, if the
// directory is a scene directory or lies inside one.
func SceneDirOf(root, dir string) (Location, bool) {
	project, rest, ok := splitProject(root, dir)
	if !ok {
		return Location{}, false
	}
	for _, segment := range rest {
		if id, ok := ParseDirName(segment); ok {
			return Location{ProjectID: project, SceneID: id}, true
		}
	}
	return Location{ProjectID: project}, true
}
