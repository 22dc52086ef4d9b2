// Package capture provides frame sources for the session controller and the
// fixed-resolution downscale applied before analysis submission.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Analysis resolution. Frames are downscaled to this size before submission
// so the analysis service sees a stable input regardless of device.
const (
	AnalysisWidth  = 640
	AnalysisHeight = 480
)

// ErrNotAcquired is returned by Grab on a device that is not held.
var ErrNotAcquired = errors.New("capture: device not acquired")

// Downscale decodes an encoded frame and re-encodes it at width x height.
// Frames already at or below the target size are re-encoded without scaling.
func Downscale(frame []byte, width, height int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(frame))
	if err != nil {
		return nil, fmt.Errorf("capture: decoding frame: %w", err)
	}

	b := img.Bounds()
	if b.Dx() <= width && b.Dy() <= height {
		return encodeJPEG(img)
	}

	// Nearest-neighbour is sufficient here: the analysis model consumes pose
	// geometry, not texture detail.
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		sy := b.Min.Y + y*b.Dy()/height
		for x := 0; x < width; x++ {
			sx := b.Min.X + x*b.Dx()/width
			dst.Set(x, y, img.At(sx, sy))
		}
	}
	return encodeJPEG(dst)
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return nil, fmt.Errorf("capture: encoding frame: %w", err)
	}
	return buf.Bytes(), nil
}

// FileDevice serves JPEG frames from a directory, cycling through the files
// in name order. It stands in for a camera in the agent and in tests; the
// controller only sees the Device contract.
type FileDevice struct {
	dir string

	mu       sync.Mutex
	acquired bool
	frames   []string
	next     int
}

// NewFileDevice creates a device over the given directory. The directory is
// scanned at Acquire time, not here.
func NewFileDevice(dir string) *FileDevice {
	return &FileDevice{dir: dir}
}

// Acquire claims the device and scans the frame directory. Fails when the
// device is already held or the directory holds no frames.
func (d *FileDevice) Acquire(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acquired {
		return fmt.Errorf("capture: device already in use")
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("capture: reading frame dir: %w", err)
	}
	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".jpg", ".jpeg":
			frames = append(frames, filepath.Join(d.dir, e.Name()))
		}
	}
	if len(frames) == 0 {
		return fmt.Errorf("capture: no frames in %s", d.dir)
	}
	sort.Strings(frames)

	d.frames = frames
	d.next = 0
	d.acquired = true
	return nil
}

// Grab returns the next frame, wrapping around at the end of the directory.
func (d *FileDevice) Grab(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.acquired {
		return nil, ErrNotAcquired
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := d.frames[d.next]
	d.next = (d.next + 1) % len(d.frames)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("capture: reading frame %s: %w", path, err)
	}
	return data, nil
}

// Release frees the device for the next controller. Idempotent.
func (d *FileDevice) Release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquired = false
	d.frames = nil
	return nil
}
