// Package camera provides frame sources for the pose monitor.
// A Source yields decoded RGB frames, either from a live MJPEG camera
// stream or from an uploaded recording.
package camera

import (
	"errors"
	"time"

	"github.com/bmharper/cimg/v2"
)

// ErrEndOfStream is returned by NextFrame when a finite source (eg an
// uploaded recording) has no more frames.
var ErrEndOfStream = errors.New("end of stream")

// Frame is a single decoded video frame.
type Frame struct {
	Image *cimg.Image // RGB
	Seq   int64       // Monotonic frame counter, starting at 0
	PTS   time.Time
}

// Source produces frames in presentation order.
type Source interface {
	// NextFrame blocks until the next frame is available, and returns
	// ErrEndOfStream when the source is exhausted.
	NextFrame() (*Frame, error)
	// Label identifies the source for logging (eg a URL or filename).
	Label() string
	Close()
}

// decodeFrame turns a JPEG into an RGB frame.
func decodeFrame(jpg []byte, seq int64, pts time.Time) (*Frame, error) {
	img, err := cimg.Decompress(jpg)
	if err != nil {
		return nil, err
	}
	if img.Format != cimg.PixelFormatRGB {
		img = img.ToRGB()
	}
	return &Frame{Image: img, Seq: seq, PTS: pts}, nil
}
