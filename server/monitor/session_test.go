package monitor

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/poseguard/poseguard/pkg/gen"
	"github.com/poseguard/poseguard/server/alertdb"
	"github.com/poseguard/poseguard/server/camera"
	"github.com/poseguard/poseguard/server/classify"
	"github.com/poseguard/poseguard/server/storage"
	"github.com/stretchr/testify/require"
)

// testSource feeds frames from a channel, so the test controls pacing.
type testSource struct {
	frames    chan *camera.Frame
	closeOnce sync.Once
}

func newTestSource() *testSource {
	return &testSource{frames: make(chan *camera.Frame)}
}

func (s *testSource) NextFrame() (*camera.Frame, error) {
	f, ok := <-s.frames
	if !ok {
		return nil, camera.ErrEndOfStream
	}
	return f, nil
}

func (s *testSource) Label() string {
	return "test source"
}

func (s *testSource) Close() {
	s.closeOnce.Do(func() { close(s.frames) })
}

func (s *testSource) push(seq int64) {
	img := cimg.NewImage(64, 48, cimg.PixelFormatRGB)
	s.frames <- &camera.Frame{Image: img, Seq: seq, PTS: time.Now()}
}

// scriptedClassifier answers from a fixed schedule, repeating the last entry.
type scriptedClassifier struct {
	results []classify.Result
	calls   atomic.Int64
}

func (c *scriptedClassifier) Classify(frame *camera.Frame) (classify.Result, error) {
	i := c.calls.Add(1) - 1
	if i >= int64(len(c.results)) {
		i = int64(len(c.results)) - 1
	}
	return c.results[i], nil
}

func (c *scriptedClassifier) IsAlive() error {
	return nil
}

// failingClassifier simulates an unreachable sidecar.
type failingClassifier struct {
	calls atomic.Int64
}

func (c *failingClassifier) Classify(frame *camera.Frame) (classify.Result, error) {
	c.calls.Add(1)
	return classify.ErrorResult, errors.New("connection refused")
}

func (c *failingClassifier) IsAlive() error {
	return errors.New("connection refused")
}

type testHarness struct {
	monitor *Monitor
	alertDB *alertdb.AlertDB
	store   storage.Storage
	plays   *atomic.Int64
}

func newTestHarness(t *testing.T, classifier classify.Classifier) *testHarness {
	logger := logs.NewTestingLog(t)
	tempDir := t.TempDir()
	store, err := storage.NewStorageFS(logger, filepath.Join(tempDir, "evidence"))
	require.NoError(t, err)
	db, err := alertdb.Open(logger, filepath.Join(tempDir, "alerts.sqlite"))
	require.NoError(t, err)
	plays := &atomic.Int64{}
	player := func() error {
		plays.Add(1)
		return nil
	}
	return &testHarness{
		monitor: NewMonitor(logger, classifier, store, db, DefaultDetectionConfig(), player),
		alertDB: db,
		store:   store,
		plays:   plays,
	}
}

// maxPixel returns the brightest channel value in the image. Our test frames
// are black, so any drawn overlay stands out clearly even after JPEG
// compression.
func maxPixel(img *cimg.Image) byte {
	max := byte(0)
	for _, v := range img.Pixels {
		if v > max {
			max = v
		}
	}
	return max
}

func TestSessionAlertFlow(t *testing.T) {
	classifier := &scriptedClassifier{results: []classify.Result{{Label: "Drinking", Confidence: 0.9}}}
	h := newTestHarness(t, classifier)
	src := newTestSource()

	session, err := h.monitor.StartSession(src, "driver@example.com", false)
	require.NoError(t, err)

	events := h.monitor.AddEventWatcher()
	defer h.monitor.RemoveEventWatcher(events)

	// Stride 2 classifies even frames, so 22 frames give 11 unwanted votes,
	// and the 11th exceeds the threshold of 10
	for seq := int64(0); seq < 22; seq++ {
		src.push(seq)
	}
	// The alarm goroutine needs a chance to run before the session ends
	deadline := time.Now().Add(3 * time.Second)
	for h.plays.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	src.Close()
	<-session.Done()

	alerts, err := h.alertDB.ListAlerts("", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1, "exactly one alert for one sustained run")
	require.Equal(t, "Unwanted Pose Detected (Drinking)", alerts[0].AlertType)
	require.Equal(t, "driver@example.com", alerts[0].UserEmail)

	screenshots, err := h.alertDB.ListScreenshots("", 0)
	require.NoError(t, err)
	require.Len(t, screenshots, 1)
	evidence, err := storage.ReadFileBytes(h.store, screenshots[0].ImagePath)
	require.NoError(t, err)
	img, err := cimg.Decompress(evidence)
	require.NoError(t, err)
	require.Equal(t, 64, img.Width)
	require.Greater(t, maxPixel(img), byte(100), "evidence carries the annotation overlay")

	require.GreaterOrEqual(t, h.plays.Load(), int64(1), "alarm must have sounded")

	raised := 0
	for _, ev := range gen.DrainChannelIntoSlice(events) {
		if ev.AlertRaised {
			raised++
			require.Equal(t, "Drinking", ev.Label)
			require.True(t, ev.AlarmOn)
		}
	}
	require.Equal(t, 1, raised)
}

func TestSessionWantedVoteSilencesAlarm(t *testing.T) {
	results := []classify.Result{}
	for i := 0; i < 11; i++ {
		results = append(results, classify.Result{Label: "Phone (Right Hand)", Confidence: 0.95})
	}
	results = append(results, classify.Result{Label: classify.NormalLabel, Confidence: 0.99})
	classifier := &scriptedClassifier{results: results}
	h := newTestHarness(t, classifier)
	src := newTestSource()

	session, err := h.monitor.StartSession(src, "driver@example.com", false)
	require.NoError(t, err)

	for seq := int64(0); seq < 24; seq++ {
		src.push(seq)
	}
	src.Close()
	<-session.Done()

	state := session.State()
	require.False(t, state.AlarmOn, "a single wanted vote silences the alarm")
	require.Equal(t, 0, state.UnwantedRun)

	alerts, err := h.alertDB.ListAlerts("", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
}

func TestSessionLowConfidenceNeverAlerts(t *testing.T) {
	// Confidence at exactly the threshold does not count as a vote
	classifier := &scriptedClassifier{results: []classify.Result{{Label: "Makeup", Confidence: 0.7}}}
	h := newTestHarness(t, classifier)
	src := newTestSource()

	session, err := h.monitor.StartSession(src, "driver@example.com", false)
	require.NoError(t, err)
	for seq := int64(0); seq < 40; seq++ {
		src.push(seq)
	}
	src.Close()
	<-session.Done()

	alerts, err := h.alertDB.ListAlerts("", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 0)
	require.Equal(t, int64(0), h.plays.Load())
}

func TestSessionFrameWatcher(t *testing.T) {
	classifier := &scriptedClassifier{results: []classify.Result{{Label: classify.NormalLabel, Confidence: 0.98}}}
	h := newTestHarness(t, classifier)
	src := newTestSource()

	session, err := h.monitor.StartSession(src, "driver@example.com", false)
	require.NoError(t, err)
	frames := session.AddFrameWatcher()

	for seq := int64(0); seq < 4; seq++ {
		src.push(seq)
	}
	src.Close()
	<-session.Done()
	session.RemoveFrameWatcher(frames)

	require.Equal(t, 4, len(frames), "every frame is published, not just classified ones")
	for i := 0; i < 4; i++ {
		frame := <-frames
		img, err := cimg.Decompress(frame.JPEG)
		require.NoError(t, err)
		require.Equal(t, 64, img.Width)
		require.Equal(t, 48, img.Height)
		// Stride 2: even frames are classified and annotated, odd frames
		// pass through untouched
		if frame.Seq%2 == 0 {
			require.Greater(t, maxPixel(img), byte(100), "frame %v carries the overlay", frame.Seq)
		} else {
			require.Less(t, maxPixel(img), byte(40), "frame %v is unannotated", frame.Seq)
		}
	}
}

func TestSessionClassifierErrorNeverAlerts(t *testing.T) {
	classifier := &failingClassifier{}
	h := newTestHarness(t, classifier)
	src := newTestSource()

	session, err := h.monitor.StartSession(src, "driver@example.com", false)
	require.NoError(t, err)
	for seq := int64(0); seq < 40; seq++ {
		src.push(seq)
	}
	src.Close()
	<-session.Done()

	require.Greater(t, classifier.calls.Load(), int64(0))
	state := session.State()
	require.Equal(t, 0, state.UnwantedRun, "failed classifications never count as votes")
	require.Equal(t, classify.ErrorResult.Label, state.LastLabel)
	require.False(t, state.AlarmOn)

	alerts, err := h.alertDB.ListAlerts("", 0)
	require.NoError(t, err)
	require.Len(t, alerts, 0)
	require.Equal(t, int64(0), h.plays.Load())
}

func TestLiveSessionExclusivity(t *testing.T) {
	classifier := &scriptedClassifier{results: []classify.Result{{Label: classify.NormalLabel, Confidence: 0.9}}}
	h := newTestHarness(t, classifier)

	live := newTestSource()
	session, err := h.monitor.StartSession(live, "driver@example.com", true)
	require.NoError(t, err)

	_, err = h.monitor.StartSession(newTestSource(), "other@example.com", true)
	require.Error(t, err, "the live camera is exclusively owned")

	// File sessions are not subject to the exclusivity rule
	fileSrc := newTestSource()
	fileSession, err := h.monitor.StartSession(fileSrc, "other@example.com", false)
	require.NoError(t, err)
	fileSrc.Close()
	<-fileSession.Done()

	session.Stop()

	// The device is free again
	live2 := newTestSource()
	session2, err := h.monitor.StartSession(live2, "driver@example.com", true)
	require.NoError(t, err)
	session2.Stop()
}
