package scanner

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
)

var (
	// ErrNoFrame means no new frame arrived since the last Grab.
	ErrNoFrame = errors.New("no frame available")
	// ErrSourceClosed ends the sampling loop.
	ErrSourceClosed = errors.New("frame source closed")
)

type Facing string

const (
	FacingUnknown Facing = ""
	FacingFront   Facing = "front"
	FacingRear    Facing = "rear"
)

type Device struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Facing Facing `json:"facing,omitempty"`
}

// rear reports whether the device looks rear facing, by declared facing or by
// the label browsers and drivers commonly use.
func (d Device) rear() bool {
	if d.Facing == FacingRear {
		return true
	}
	if d.Facing != FacingUnknown {
		return false
	}
	label := strings.ToLower(d.Label)
	return strings.Contains(label, "back") || strings.Contains(label, "rear") || strings.Contains(label, "environment")
}

// SelectDevice prefers a rear-facing camera and otherwise takes the first one.
func SelectDevice(devices []Device) (Device, bool) {
	for _, d := range devices {
		if d.rear() {
			return d, true
		}
	}
	if len(devices) > 0 {
		return devices[0], true
	}
	return Device{}, false
}

type FrameSource interface {
	Grab(ctx context.Context) (image.Image, error)
	Close() error
}

type Camera interface {
	Devices(ctx context.Context) ([]Device, error)
	Open(ctx context.Context, device Device) (FrameSource, error)
}

// FrameBuffer holds only the most recent frame. Pushing while a frame is
// unread replaces it, so a slow reader never works through a backlog.
type FrameBuffer struct {
	mu     sync.Mutex
	frame  image.Image
	closed bool
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{}
}

func (b *FrameBuffer) Push(img image.Image) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrSourceClosed
	}
	b.frame = img
	return nil
}

func (b *FrameBuffer) Grab(_ context.Context) (image.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrSourceClosed
	}
	if b.frame == nil {
		return nil, ErrNoFrame
	}
	img := b.frame
	b.frame = nil
	return img, nil
}

func (b *FrameBuffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.frame = nil
	return nil
}

func (b *FrameBuffer) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// RemoteCamera is a camera living on a client that streams frames to us. The
// client announces its devices; Open hands out the shared buffer.
type RemoteCamera struct {
	mu       sync.Mutex
	devices  []Device
	selected Device
	buffer   *FrameBuffer
}

func NewRemoteCamera() *RemoteCamera {
	return &RemoteCamera{buffer: NewFrameBuffer()}
}

func (c *RemoteCamera) Announce(devices []Device) Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.devices = append([]Device(nil), devices...)
	c.selected, _ = SelectDevice(c.devices)
	return c.selected
}

func (c *RemoteCamera) Devices(_ context.Context) ([]Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Device(nil), c.devices...), nil
}

func (c *RemoteCamera) Open(_ context.Context, device Device) (FrameSource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffer.Closed() {
		return nil, ErrSourceClosed
	}
	c.selected = device
	return c.buffer, nil
}

func (c *RemoteCamera) Selected() Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Push feeds one client frame into the open stream.
func (c *RemoteCamera) Push(img image.Image) error {
	return c.buffer.Push(img)
}
