package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"scene-index/internal/logging"
	"scene-index/internal/mediatypes"
)

// MetadataProber adds duration and resolution to the stat information.
// Video and audio go through ffprobe, images through their header only.
// A failed metadata probe never fails the file: the stat fields are kept.
type MetadataProber struct {
	stat    *StatProber
	binary  string
	timeout time.Duration
}

// NewMetadataProber creates a prober that runs binary (default "ffprobe")
// with the given per-file timeout.
func NewMetadataProber(binary string, timeout time.Duration) *MetadataProber {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MetadataProber{stat: NewStatProber(), binary: binary, timeout: timeout}
}

// Probe implements Prober.
func (p *MetadataProber) Probe(ctx context.Context, path string, mt mediatypes.MediaType) (Info, error) {
	info, err := p.stat.Probe(ctx, path, mt)
	if err != nil {
		return Info{}, err
	}

	switch mt {
	case mediatypes.MediaTypeVideo, mediatypes.MediaTypeAudio:
		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		result, err := inspect(probeCtx, p.binary, path)
		if err != nil {
			logging.Debug("Probe: ffprobe failed for %s: %v", path, err)
			return info, nil
		}
		info.DurationSeconds = result.durationSeconds()
		info.Width, info.Height = result.dimensions()
	case mediatypes.MediaTypeImage:
		width, height, err := imageDimensions(path)
		if err != nil {
			logging.Debug("Probe: could not read image header %s: %v", path, err)
			return info, nil
		}
		info.Width, info.Height = width, height
	}
	return info, nil
}

type ffprobeResult struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func inspect(ctx context.Context, binary, path string) (ffprobeResult, error) {
	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	)
	output, err := cmd.Output()
	if err != nil {
		return ffprobeResult{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	var result ffprobeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ffprobeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

func (r ffprobeResult) durationSeconds() float64 {
	d, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// dimensions returns the size of the first video stream.
func (r ffprobeResult) dimensions() (int, int) {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "video") {
			return s.Width, s.Height
		}
	}
	return 0, 0
}

func imageDimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return config.Width, config.Height, nil
}
