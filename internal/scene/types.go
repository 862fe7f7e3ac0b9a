package scene

import (
	"sort"
	"time"

	"scene-index/internal/mediatypes"
)

// MediaRecord is one physical file found under a scene's media directory.
type MediaRecord struct {
	ProjectID  string               `json:"project_id"`
	SceneID    string               `json:"scene_id"`
	Path       string               `json:"path"`
	MediaType  mediatypes.MediaType `json:"media_type"`
	SizeBytes  int64                `json:"size_bytes"`
	ModifiedAt int64                `json:"modified_at"`
	Format     string               `json:"format"`

	// Filled only when metadata probing is enabled.
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
}

// SceneEntry groups the records of one scene directory by media type.
// A scene without media sub-directories still has an entry with no records.
type SceneEntry struct {
	ID     string        `json:"id"`
	Dir    string        `json:"dir"`
	Videos []MediaRecord `json:"videos"`
	Audio  []MediaRecord `json:"audio"`
	Images []MediaRecord `json:"images"`
}

// Records returns the records of the given media type.
func (e *SceneEntry) Records(mt mediatypes.MediaType) []MediaRecord {
	switch mt {
	case mediatypes.MediaTypeVideo:
		return e.Videos
	case mediatypes.MediaTypeAudio:
		return e.Audio
	case mediatypes.MediaTypeImage:
		return e.Images
	}
	return nil
}

// Add appends r to the slice for its media type. A record with the same
// path replaces the earlier one.
func (e *SceneEntry) Add(r MediaRecord) {
	var list *[]MediaRecord
	switch r.MediaType {
	case mediatypes.MediaTypeVideo:
		list = &e.Videos
	case mediatypes.MediaTypeAudio:
		list = &e.Audio
	case mediatypes.MediaTypeImage:
		list = &e.Images
	default:
		return
	}
	for i := range *list {
		if (*list)[i].Path == r.Path {
			(*list)[i] = r
			return
		}
	}
	*list = append(*list, r)
}

// FileCount returns the number of records across all media types.
func (e *SceneEntry) FileCount() int {
	return len(e.Videos) + len(e.Audio) + len(e.Images)
}

// ProjectIndex is a point-in-time snapshot of a project's scenes. Once
// published it is never mutated; rebuilds replace it wholesale.
type ProjectIndex struct {
	ProjectID string                 `json:"project_id"`
	Scenes    map[string]*SceneEntry `json:"scenes"`
	// BuiltAt is when the scan that produced the snapshot started.
	BuiltAt    time.Time `json:"built_at"`
	TotalFiles int       `json:"total_files"`
}

// NewProjectIndex returns an empty snapshot for projectID.
func NewProjectIndex(projectID string, builtAt time.Time) *ProjectIndex {
	return &ProjectIndex{
		ProjectID: projectID,
		Scenes:    make(map[string]*SceneEntry),
		BuiltAt:   builtAt,
	}
}

// Age reports how old the snapshot is at now.
func (p *ProjectIndex) Age(now time.Time) time.Duration {
	return now.Sub(p.BuiltAt)
}

// FreshAt reports whether the snapshot is younger than maxAge at now.
func (p *ProjectIndex) FreshAt(now time.Time, maxAge time.Duration) bool {
	return p != nil && p.Age(now) < maxAge
}

// SceneIDs returns the scene ids in scene order.
func (p *ProjectIndex) SceneIDs() []string {
	ids := make([]string, 0, len(p.Scenes))
	for id := range p.Scenes {
		ids = append(ids, id)
	}
	SortIDs(ids)
	return ids
}

// Recount recomputes TotalFiles from the scene entries.
func (p *ProjectIndex) Recount() {
	total := 0
	for _, e := range p.Scenes {
		total += e.FileCount()
	}
	p.TotalFiles = total
}

// EventKind is the normalized kind of a filesystem change.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventDeleted  EventKind = "deleted"
)

// WatcherEvent is a normalized filesystem change under a watched project.
type WatcherEvent struct {
	Kind      EventKind            `json:"kind"`
	FilePath  string               `json:"file_path"`
	ProjectID string               `json:"project_id"`
	SceneID   string               `json:"scene_id,omitempty"`
	MediaType mediatypes.MediaType `json:"media_type,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// SortIDs orders scene ids numerically, with non-numeric ids last in
// lexical order.
func SortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		return CompareIDs(ids[i], ids[j]) < 0
	})
}

// CompareIDs compares two canonical scene ids in scene order.
func CompareIDs(a, b string) int {
	an, bn := IsNumeric(a), IsNumeric(b)
	switch {
	case an && !bn:
		return -1
	case !an && bn:
		return 1
	case an && bn:
		// Canonical numeric ids have no leading zeros, so length orders magnitude.
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
