package camera

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// MJPEGSource reads a live MJPEG stream over HTTP (the usual
// multipart/x-mixed-replace format that IP webcams emit).
type MJPEGSource struct {
	url      string
	response *http.Response
	reader   *multipart.Reader
	seq      int64
}

func OpenMJPEG(url string, timeout time.Duration) (*MJPEGSource, error) {
	client := &http.Client{
		Timeout: 0, // The body is an infinite stream
		Transport: &http.Transport{
			ResponseHeaderTimeout: timeout,
		},
	}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to camera %v: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("Camera %v returned status %v", url, resp.Status)
	}
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		return nil, fmt.Errorf("Camera %v is not an MJPEG stream (Content-Type %v)", url, resp.Header.Get("Content-Type"))
	}
	return &MJPEGSource{
		url:      url,
		response: resp,
		reader:   multipart.NewReader(resp.Body, params["boundary"]),
	}, nil
}

func (s *MJPEGSource) NextFrame() (*Frame, error) {
	part, err := s.reader.NextPart()
	if err != nil {
		if err == io.EOF {
			return nil, ErrEndOfStream
		}
		return nil, err
	}
	jpg, err := io.ReadAll(part)
	part.Close()
	if err != nil {
		return nil, err
	}
	frame, err := decodeFrame(jpg, s.seq, time.Now())
	if err != nil {
		return nil, err
	}
	s.seq++
	return frame, nil
}

func (s *MJPEGSource) Label() string {
	return s.url
}

func (s *MJPEGSource) Close() {
	s.response.Body.Close()
}
