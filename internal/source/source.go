// Package source produces inference-annotated frames for a camera.
package source

import (
	"context"
	"errors"
	"time"

	"camsampler/internal/config"
)

// ErrEndOfStream is returned by Run when the device stops delivering frames.
var ErrEndOfStream = errors.New("end of stream")

// Frame is one JPEG-encoded image with the number of persons detected in it.
type Frame struct {
	Image   []byte
	Persons int
	At      time.Time
}

// FrameHandler consumes a frame on the source's delivery goroutine.
type FrameHandler func(Frame)

// FrameSource delivers frames until ctx is cancelled or the stream ends.
// Run blocks; handle is called synchronously for every frame. A cancelled
// context yields nil or ctx.Err(); an exhausted stream yields ErrEndOfStream.
type FrameSource interface {
	Run(ctx context.Context, handle FrameHandler) error
}

// Factory builds the frame source of one camera.
type Factory interface {
	New(cfg config.CameraConfig) (FrameSource, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(cfg config.CameraConfig) (FrameSource, error)

// New calls f(cfg).
func (f FactoryFunc) New(cfg config.CameraConfig) (FrameSource, error) {
	return f(cfg)
}
