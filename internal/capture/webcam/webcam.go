// Package webcam reads frames from a local camera through OpenCV.
package webcam

import (
	"context"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-attendance/internal/capture"
)

// Camera is a capture.Device backed by an OpenCV video capture.
type Camera struct {
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

// Open opens the camera with the given index.
func Open(device int) (*Camera, error) {
	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: open camera %d: %w", capture.ErrCaptureDevice, device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: camera %d not available", capture.ErrCaptureDevice, device)
	}
	return &Camera{vc: vc, mat: gocv.NewMat()}, nil
}

// Read grabs one frame.
func (c *Camera) Read(ctx context.Context) (capture.Frame, error) {
	if err := ctx.Err(); err != nil {
		return capture.Frame{}, err
	}
	if ok := c.vc.Read(&c.mat); !ok || c.mat.Empty() {
		return capture.Frame{}, fmt.Errorf("%w: cannot read frame", capture.ErrCaptureDevice)
	}
	img, err := c.mat.ToImage()
	if err != nil {
		return capture.Frame{}, fmt.Errorf("%w: %w", capture.ErrCaptureDevice, err)
	}
	return capture.Frame{Image: img, CapturedAt: time.Now()}, nil
}

// Close releases the camera.
func (c *Camera) Close() error {
	c.mat.Close()
	return c.vc.Close()
}

// Preview shows annotated frames in a desktop window.
type Preview struct {
	win *gocv.Window
}

// NewPreview opens a window with the given title.
func NewPreview(title string) *Preview {
	return &Preview{win: gocv.NewWindow(title)}
}

// Show displays img and reports whether the operator pressed q.
func (p *Preview) Show(img image.Image) (bool, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return false, err
	}
	defer mat.Close()

	p.win.IMShow(mat)
	key := p.win.WaitKey(1)
	return key == 'q' || key == 'Q', nil
}

// Close destroys the window.
func (p *Preview) Close() error {
	return p.win.Close()
}
