package capture

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DirectorySource replays the images of a directory in name order. It stands
// in for a camera in headless runs.
type DirectorySource struct {
	files []string
	next  int
	loop  bool
	now   func() time.Time
}

// OpenDirectory lists the .jpg, .jpeg and .png files of dir. With loop set
// the source restarts from the first file instead of returning io.EOF.
func OpenDirectory(dir string, loop bool) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureDevice, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrCaptureDevice, dir)
	}
	slices.Sort(files)

	return &DirectorySource{files: files, loop: loop, now: time.Now}, nil
}

// Read decodes the next image.
func (d *DirectorySource) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if d.next >= len(d.files) {
		if !d.loop {
			return Frame{}, io.EOF
		}
		d.next = 0
	}

	path := d.files[d.next]
	d.next++

	f, err := os.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrCaptureDevice, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: decode %s: %w", ErrCaptureDevice, filepath.Base(path), err)
	}
	return Frame{Image: img, CapturedAt: d.now()}, nil
}

// Close is a no-op.
func (d *DirectorySource) Close() error { return nil }
