// Package capture acquires frames for a recognition session and prepares them
// for detection and preview.
package capture

import (
	"context"
	"errors"
	"image"
	"time"
)

// ErrCaptureDevice means the device could not deliver a frame. It is fatal to a session.
var ErrCaptureDevice = errors.New("capture device failure")

// Frame is one captured image.
type Frame struct {
	Image      image.Image
	CapturedAt time.Time
}

// Device delivers frames. Read returns io.EOF when a finite source is exhausted.
type Device interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}
