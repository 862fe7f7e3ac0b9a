package scene

import (
	"testing"

	"scene-index/internal/mediatypes"
)

func videoRecord(name string) MediaRecord {
	return MediaRecord{Path: "/projects/p1/scene_3/video/" + name, MediaType: mediatypes.MediaTypeVideo}
}

func TestVideoTier(t *testing.T) {
	tests := []struct {
		file string
		want int
	}{
		{file: "scene_3_final.mp4", want: TierOutput},
		{file: "generated.mov", want: TierOutput},
		{file: "clip-composited.mkv", want: TierOutput},
		{file: "render.output.webm", want: TierOutput},
		{file: "finalize.mp4", want: TierOther},
		{file: "scene_3.mp4", want: TierSceneName},
		{file: "scene_03.mp4", want: TierSceneName},
		{file: "scene_4.mp4", want: TierOther},
		{file: "other.mp4", want: TierOther},
		{file: "final.wav", want: TierNotVideo},
		{file: "notes.txt", want: TierNotVideo},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			if got := VideoTier("3", tt.file); got != tt.want {
				t.Errorf("VideoTier(3, %q) = %d, want %d", tt.file, got, tt.want)
			}
		})
	}
}

func TestSelectVideoIgnoresListingOrder(t *testing.T) {
	orders := [][]string{
		{"scene_3.mp4", "other.mp4", "scene_3_generated.mp4"},
		{"scene_3_generated.mp4", "scene_3.mp4", "other.mp4"},
		{"other.mp4", "scene_3_generated.mp4", "scene_3.mp4"},
	}

	for _, order := range orders {
		records := make([]MediaRecord, 0, len(order))
		for _, name := range order {
			records = append(records, videoRecord(name))
		}
		got, ok := SelectVideo("3", records)
		if !ok {
			t.Fatalf("SelectVideo(%v) found nothing", order)
		}
		if got.Path != "/projects/p1/scene_3/video/scene_3_generated.mp4" {
			t.Errorf("SelectVideo(%v) = %s, want generated file", order, got.Path)
		}
	}
}

func TestSelectVideoTiesUseListingOrder(t *testing.T) {
	records := []MediaRecord{videoRecord("b.mp4"), videoRecord("a.mp4")}
	got, ok := SelectVideo("3", records)
	if !ok || got.Path != records[0].Path {
		t.Errorf("SelectVideo = %s, want first listed file %s", got.Path, records[0].Path)
	}
}

func TestRankVideos(t *testing.T) {
	records := []MediaRecord{
		videoRecord("other.mp4"),
		videoRecord("scene_3.mp4"),
		{Path: "/projects/p1/scene_3/video/readme.txt"},
		videoRecord("final.mp4"),
	}
	ranked := RankVideos("3", records)
	if len(ranked) != 3 {
		t.Fatalf("RankVideos returned %d records, want 3", len(ranked))
	}
	want := []string{"final.mp4", "scene_3.mp4", "other.mp4"}
	for i, name := range want {
		if ranked[i].Path != "/projects/p1/scene_3/video/"+name {
			t.Errorf("ranked[%d] = %s, want %s", i, ranked[i].Path, name)
		}
	}
}
