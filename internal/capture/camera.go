package capture

import (
	"context"
	"errors"
	"image"
	"sync"

	"golang.org/x/image/font/opentype"
)

var (
	ErrNoStream = errors.New("camera is not started")
	// ErrSuperseded is returned by Start and Toggle when the preview was
	// dismissed or restarted while the device was still opening.
	ErrSuperseded = errors.New("camera open superseded")
)

// Constraints requested when opening a camera. Width and Height are ideals,
// the device may deliver something else.
type Constraints struct {
	Facing Facing
	Width  int
	Height int
}

// ZoomRange is a track's zoom capability
type ZoomRange struct {
	Min, Max float64
}

type Track interface {
	Stop()
	// Zoom returns nil when the track cannot zoom
	Zoom() *ZoomRange
	ApplyZoom(level float64) error
}

type Stream interface {
	Tracks() []Track
	Frame() (image.Image, error)
}

type Device interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Camera owns at most one open stream and releases its tracks whenever the
// preview is dismissed, the camera is switched, or a still is captured.
// Device.Open runs without the lock held so Dismiss never waits on a
// permission prompt.
type Camera struct {
	dev    Device
	facing Facing
	stream Stream
	// generation is bumped on every release
	generation uint64
	mu         sync.Mutex
}

// NewCamera starts out facing the environment
func NewCamera(dev Device) *Camera {
	return &Camera{dev: dev, facing: FacingEnvironment}
}

func (c *Camera) Facing() Facing {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.facing
}

func (c *Camera) SetFacing(f Facing) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.facing = f
}

func (c *Camera) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream != nil
}

// Start opens a stream for the current facing, releasing any previous one
func (c *Camera) Start(ctx context.Context) error {
	return c.open(ctx, false)
}

// Toggle switches between the front and back camera
func (c *Camera) Toggle(ctx context.Context) error {
	return c.open(ctx, true)
}

func (c *Camera) open(ctx context.Context, flip bool) error {
	c.mu.Lock()
	c.releaseLocked()
	if flip {
		c.facing = c.facing.Toggle()
	}
	generation := c.generation
	want := Constraints{Facing: c.facing, Width: FrameWidth, Height: FrameHeight}
	c.mu.Unlock()

	s, err := c.dev.Open(ctx, want)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		stopTracks(s)
		return ErrSuperseded
	}
	if c.stream != nil {
		stopTracks(c.stream)
	}
	c.stream = s
	return nil
}

// Dismiss closes the preview
func (c *Camera) Dismiss() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked()
}

// SetZoom applies level, clamped to the track's range, to every track that
// supports zoom. Tracks without the capability are left alone.
func (c *Camera) SetZoom(level float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return
	}
	for _, t := range c.stream.Tracks() {
		r := t.Zoom()
		if r == nil {
			continue
		}
		_ = t.ApplyZoom(max(r.Min, min(r.Max, level)))
	}
}

// Capture grabs one frame, composites it and releases the stream
func (c *Camera) Capture(glyph string, f *opentype.Font) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil, ErrNoStream
	}
	defer c.releaseLocked()

	frame, err := c.stream.Frame()
	if err != nil {
		return nil, err
	}
	return Composite(frame, Options{Facing: c.facing, Glyph: glyph, Font: f})
}

func (c *Camera) releaseLocked() {
	c.generation++
	if c.stream == nil {
		return
	}
	stopTracks(c.stream)
	c.stream = nil
}

func stopTracks(s Stream) {
	for _, t := range s.Tracks() {
		t.Stop()
	}
}
