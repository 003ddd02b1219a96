package classify

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/poseguard/poseguard/server/camera"
	"github.com/stretchr/testify/require"
)

func testFrame() *camera.Frame {
	img := cimg.NewImage(640, 480, cimg.PixelFormatRGB)
	return &camera.Frame{Image: img, Seq: 0, PTS: time.Now()}
}

func TestIsUnwanted(t *testing.T) {
	require.True(t, Result{Label: "Drinking", Confidence: 0.9}.IsUnwanted(0.7))
	require.False(t, Result{Label: "Drinking", Confidence: 0.7}.IsUnwanted(0.7), "threshold is exclusive")
	require.False(t, Result{Label: NormalLabel, Confidence: 0.99}.IsUnwanted(0.7))
	require.False(t, ErrorResult.IsUnwanted(0.7))
}

func TestHTTPClassifier(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/classify":
			file, _, err := r.FormFile("image")
			require.NoError(t, err)
			defer file.Close()
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"label": "Looking Away", "confidence": 0.83}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, 5*time.Second)
	require.NoError(t, c.IsAlive())

	result, err := c.Classify(testFrame())
	require.NoError(t, err)
	require.Equal(t, "Looking Away", result.Label)
	require.InDelta(t, 0.83, result.Confidence, 0.001)
	require.True(t, result.IsUnwanted(0.7))
}

func TestHTTPClassifierFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClassifier(srv.URL, 5*time.Second)
	result, err := c.Classify(testFrame())
	require.Error(t, err)
	require.True(t, result.IsError())
}
