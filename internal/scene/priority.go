package scene

import (
	"path/filepath"
	"sort"
	"strings"

	"scene-index/internal/mediatypes"
)

// Priority tiers for choosing a scene's video, lowest wins.
const (
	TierOutput = iota
	TierSceneName
	TierOther
	TierNotVideo
)

// outputWords mark files written by the generation pipeline as finished output.
var outputWords = map[string]bool{
	"final":      true,
	"generated":  true,
	"composited": true,
	"output":     true,
}

// VideoTier ranks a file name as a candidate video for sceneID.
func VideoTier(sceneID, name string) int {
	if mediatypes.FromPath(name) != mediatypes.MediaTypeVideo {
		return TierNotVideo
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	words := strings.FieldsFunc(strings.ToLower(stem), func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for _, w := range words {
		if outputWords[w] {
			return TierOutput
		}
	}

	if id, alias, err := NormalizeTarget(stem); err == nil && !alias && id == sceneID {
		return TierSceneName
	}
	return TierOther
}

// RankVideos returns the video records of a scene ordered by priority.
// Records of the same tier keep their listing order.
func RankVideos(sceneID string, records []MediaRecord) []MediaRecord {
	ranked := make([]MediaRecord, 0, len(records))
	for _, r := range records {
		if VideoTier(sceneID, filepath.Base(r.Path)) != TierNotVideo {
			ranked = append(ranked, r)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return VideoTier(sceneID, filepath.Base(ranked[i].Path)) <
			VideoTier(sceneID, filepath.Base(ranked[j].Path))
	})
	return ranked
}

// SelectVideo returns the highest priority video among records.
func SelectVideo(sceneID string, records []MediaRecord) (MediaRecord, bool) {
	best := -1
	bestTier := TierNotVideo
	for i, r := range records {
		tier := VideoTier(sceneID, filepath.Base(r.Path))
		if tier < bestTier {
			best, bestTier = i, tier
		}
	}
	if best < 0 {
		return MediaRecord{}, false
	}
	return records[best], true
}
