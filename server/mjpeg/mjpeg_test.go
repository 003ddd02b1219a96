package mjpeg

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStream(t *testing.T) {
	frames := [][]byte{
		[]byte("jpeg-one"),
		[]byte("jpeg-two"),
		[]byte("jpeg-three"),
	}

	rec := httptest.NewRecorder()
	stream, err := NewStream(rec)
	require.NoError(t, err)
	for _, f := range frames {
		require.NoError(t, stream.SendFrame(f))
	}
	// A live stream never terminates. Close the multipart body so that the
	// reader below can consume the final part.
	rec.Body.WriteString("--" + Boundary + "--\r\n")

	resp := rec.Result()
	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/x-mixed-replace", mediaType)
	require.Equal(t, Boundary, params["boundary"])

	reader := multipart.NewReader(resp.Body, params["boundary"])
	for _, want := range frames {
		part, err := reader.NextPart()
		require.NoError(t, err)
		require.Equal(t, "image/jpeg", part.Header.Get("Content-Type"))
		got, err := io.ReadAll(part)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestStreamNeedsFlusher(t *testing.T) {
	_, err := NewStream(plainWriter{httptest.NewRecorder()})
	require.Error(t, err)
}

// plainWriter hides httptest.ResponseRecorder's Flush method.
type plainWriter struct {
	inner http.ResponseWriter
}

func (w plainWriter) Header() http.Header         { return w.inner.Header() }
func (w plainWriter) Write(p []byte) (int, error) { return w.inner.Write(p) }
func (w plainWriter) WriteHeader(code int)        { w.inner.WriteHeader(code) }
