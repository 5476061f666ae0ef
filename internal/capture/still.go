package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
)

// StillDevice is a camera backed by an image file. Every stream it opens
// yields the same frame.
type StillDevice struct {
	Path string
}

func (d StillDevice) Open(ctx context.Context, _ Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.Path, err)
	}
	return &stillStream{frame: img, track: &stillTrack{}}, nil
}

type stillStream struct {
	frame image.Image
	track *stillTrack
}

func (s *stillStream) Tracks() []Track { return []Track{s.track} }

func (s *stillStream) Frame() (image.Image, error) {
	if s.track.stopped {
		return nil, ErrNoStream
	}
	return s.frame, nil
}

type stillTrack struct {
	stopped bool
}

func (t *stillTrack) Stop() { t.stopped = true }

func (t *stillTrack) Zoom() *ZoomRange { return nil }

func (t *stillTrack) ApplyZoom(float64) error { return nil }
