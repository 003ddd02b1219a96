package camera

import (
	"bytes"
	"fmt"
	"os"
	"time"
)

// FileSource plays back a recording consisting of concatenated JPEG images
// (an MJPEG file). A plain JPEG is a one-frame recording.
type FileSource struct {
	label         string
	data          []byte
	pos           int
	seq           int64
	start         time.Time
	frameInterval time.Duration
}

// OpenFile loads a recording from disk. frameInterval is the synthetic
// spacing between frame timestamps, since MJPEG carries no timing.
func OpenFile(filename string, frameInterval time.Duration) (*FileSource, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewFileSource(filename, data, frameInterval)
}

func NewFileSource(label string, data []byte, frameInterval time.Duration) (*FileSource, error) {
	if nextJPEG(data, 0) == -1 {
		return nil, fmt.Errorf("%v contains no JPEG frames", label)
	}
	return &FileSource{
		label:         label,
		data:          data,
		start:         time.Now(),
		frameInterval: frameInterval,
	}, nil
}

func (s *FileSource) NextFrame() (*Frame, error) {
	start := nextJPEG(s.data, s.pos)
	if start == -1 {
		return nil, ErrEndOfStream
	}
	end := endOfJPEG(s.data, start)
	if end == -1 {
		// Truncated final frame
		return nil, ErrEndOfStream
	}
	s.pos = end
	pts := s.start.Add(time.Duration(s.seq) * s.frameInterval)
	frame, err := decodeFrame(s.data[start:end], s.seq, pts)
	if err != nil {
		return nil, err
	}
	s.seq++
	return frame, nil
}

func (s *FileSource) Label() string {
	return s.label
}

// Close may be called concurrently with NextFrame, which never blocks on a
// file, so there is nothing to interrupt here.
func (s *FileSource) Close() {
}

var jpegSOI = []byte{0xff, 0xd8, 0xff}

// nextJPEG returns the offset of the next JPEG start-of-image marker at or
// after 'pos', or -1.
func nextJPEG(data []byte, pos int) int {
	if pos >= len(data) {
		return -1
	}
	i := bytes.Index(data[pos:], jpegSOI)
	if i == -1 {
		return -1
	}
	return pos + i
}

// endOfJPEG returns the offset just past the end-of-image marker of the JPEG
// starting at 'start', or -1 if the image is truncated.
func endOfJPEG(data []byte, start int) int {
	// Entropy-coded data escapes 0xff with a 0x00 stuffing byte, so a raw
	// scan for 0xffd9 is safe.
	i := bytes.Index(data[start+2:], []byte{0xff, 0xd9})
	if i == -1 {
		return -1
	}
	return start + 2 + i + 2
}
