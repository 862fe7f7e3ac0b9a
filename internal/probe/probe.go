package probe

import (
	"context"
	"fmt"
	"time"

	"scene-index/internal/filesystem"
	"scene-index/internal/mediatypes"
)

// Info is what a probe learns about one media file.
type Info struct {
	SizeBytes  int64
	ModifiedAt time.Time

	// Zero unless a metadata prober filled them in.
	DurationSeconds float64
	Width           int
	Height          int
}

// Prober inspects a media file.
type Prober interface {
	Probe(ctx context.Context, path string, mt mediatypes.MediaType) (Info, error)
}

// StatProber reports size and modification time from a single stat call.
type StatProber struct {
	Retry filesystem.RetryConfig
}

// NewStatProber returns a StatProber with the default NFS retry policy.
func NewStatProber() *StatProber {
	return &StatProber{Retry: filesystem.DefaultRetryConfig()}
}

// Probe implements Prober.
func (p *StatProber) Probe(_ context.Context, path string, _ mediatypes.MediaType) (Info, error) {
	info, err := filesystem.StatWithRetry(path, p.Retry)
	if err != nil {
		return Info{}, err
	}
	if !info.Mode().IsRegular() {
		return Info{}, fmt.Errorf("probe %s: not a regular file", path)
	}
	return Info{SizeBytes: info.Size(), ModifiedAt: info.ModTime()}, nil
}

// New returns the prober selected by configuration. With metadata disabled
// only stat information is collected.
func New(probeMetadata bool, ffprobePath string, timeout time.Duration) Prober {
	if !probeMetadata {
		return NewStatProber()
	}
	return NewMetadataProber(ffprobePath, timeout)
}
