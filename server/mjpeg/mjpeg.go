// Package mjpeg streams annotated frames to browsers as
// multipart/x-mixed-replace. Every mainstream browser renders this in a
// plain <img> tag, which keeps the viewer trivial.
package mjpeg

import (
	"fmt"
	"net/http"
	"strconv"
)

// Boundary is the multipart boundary token. Fixed so that clients which
// hardcode it (some embedded viewers do) keep working.
const Boundary = "frame"

// Stream writes an MJPEG stream to a single HTTP client.
type Stream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewStream takes over 'w' and sends the multipart stream header.
func NewStream(w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support flushing")
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	return &Stream{w: w, flusher: flusher}, nil
}

// SendFrame writes one JPEG part and flushes it to the client. An error means
// the client is gone and the stream must be abandoned.
func (s *Stream) SendFrame(jpg []byte) error {
	header := "--" + Boundary + "\r\n" +
		"Content-Type: image/jpeg\r\n" +
		"Content-Length: " + strconv.Itoa(len(jpg)) + "\r\n\r\n"
	if _, err := s.w.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := s.w.Write(jpg); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\r\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
