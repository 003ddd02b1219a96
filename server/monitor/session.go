package monitor

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmharper/cimg/v2"
	"github.com/cyclopcam/logs"
	"github.com/poseguard/poseguard/pkg/perfstats"
	"github.com/poseguard/poseguard/server/alarm"
	"github.com/poseguard/poseguard/server/camera"
	"github.com/poseguard/poseguard/server/classify"
)

// If the source fails this many reads in a row, the session gives up.
// A single failed read is skipped and retried.
const maxConsecutiveReadFailures = 50

const errorLogInterval = 15 * time.Second

// AnnotatedFrame is a published frame, ready for an MJPEG stream.
type AnnotatedFrame struct {
	JPEG []byte
	Seq  int64
}

// State is a point-in-time snapshot of a session, for the state API.
type State struct {
	SessionID      int64     `json:"sessionID"`
	Subject        string    `json:"subject"`
	Source         string    `json:"source"`
	Live           bool      `json:"live"`
	StartedAt      time.Time `json:"startedAt"`
	FrameCount     int64     `json:"frameCount"`
	LastLabel      string    `json:"lastLabel"`
	LastConfidence float32   `json:"lastConfidence"`
	AlarmOn        bool      `json:"alarmOn"`
	UnwantedRun    int       `json:"unwantedRun"`
	// ClassifyMS is a moving average of the classifier round trip
	ClassifyMS float64 `json:"classifyMS"`
}

// Session is one running detection pipeline: a single worker goroutine
// pulling frames from one source, with its own debounce state and alarm.
type Session struct {
	ID        int64
	Subject   string
	Live      bool
	StartedAt time.Time

	monitor  *Monitor
	source   camera.Source
	debounce *debounce
	alarm    *alarm.Loop
	mustStop atomic.Bool
	stopped  chan struct{}

	classifyNS atomic.Int64 // Moving average of classifier round trip time

	stateLock sync.Mutex
	state     State

	frameWatchersLock sync.RWMutex
	frameWatchers     []chan *AnnotatedFrame

	lastReadErrLog     time.Time
	lastClassifyErrLog time.Time
}

// Stop asks the worker to exit and waits for it. Safe to call more than once,
// and safe to call concurrently with the source ending on its own.
func (s *Session) Stop() {
	s.mustStop.Store(true)
	// Closing the source unblocks a pending NextFrame on a live stream
	s.source.Close()
	<-s.stopped
}

// Done is closed when the worker has exited.
func (s *Session) Done() <-chan struct{} {
	return s.stopped
}

func (s *Session) State() State {
	s.stateLock.Lock()
	defer s.stateLock.Unlock()
	return s.state
}

// run is the session worker: pull, classify every Nth frame, debounce,
// annotate, publish. Frames are processed strictly in arrival order.
func (s *Session) run() {
	defer close(s.stopped)
	defer s.alarm.Stop()
	defer s.monitor.removeSession(s)
	defer s.source.Close()

	m := s.monitor
	log := logs.NewPrefixLogger(m.Log, sessionLogPrefix(s.ID))
	cfg := m.cfg

	s.stateLock.Lock()
	s.state = State{
		SessionID: s.ID,
		Subject:   s.Subject,
		Source:    s.source.Label(),
		Live:      s.Live,
		StartedAt: s.StartedAt,
		LastLabel: classify.NormalLabel,
	}
	s.stateLock.Unlock()

	lastResult := classify.Result{Label: classify.NormalLabel, Confidence: 1}
	lastUnwanted := false
	readFailures := 0

	for !s.mustStop.Load() {
		frame, err := s.source.NextFrame()
		if err == camera.ErrEndOfStream {
			log.Infof("Source %v ended", s.source.Label())
			break
		}
		if err != nil {
			readFailures++
			if time.Since(s.lastReadErrLog) > errorLogInterval {
				s.lastReadErrLog = time.Now()
				log.Warnf("Failed to read frame: %v", err)
			}
			if readFailures > maxConsecutiveReadFailures {
				log.Errorf("Giving up after %v consecutive read failures", readFailures)
				break
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		readFailures = 0

		raised := false
		classified := frame.Seq%int64(cfg.FrameStride) == 0
		if classified {
			classifyStart := time.Now()
			result, err := m.classifier.Classify(frame)
			perfstats.UpdateMovingAverage(&s.classifyNS, time.Since(classifyStart).Nanoseconds())
			if err != nil {
				// The error sentinel flows through the debounce as a
				// non-vote, so the pipeline state stays well formed
				if time.Since(s.lastClassifyErrLog) > errorLogInterval {
					s.lastClassifyErrLog = time.Now()
					log.Warnf("Classification failed: %v", err)
				}
				result = classify.ErrorResult
			}
			lastResult = result
			lastUnwanted = result.IsUnwanted(cfg.ConfidenceThreshold)

			dec := s.debounce.vote(lastUnwanted)
			if dec.StopAlarm {
				s.alarm.Stop()
			}
			if dec.RaiseAlert {
				raised = true
				s.raiseAlert(log, frame, result)
			}
			m.sendEvent(&Event{
				SessionID:   s.ID,
				Subject:     s.Subject,
				Label:       result.Label,
				Confidence:  result.Confidence,
				Unwanted:    lastUnwanted,
				AlarmOn:     s.debounce.isAlarmOn(),
				AlertRaised: raised,
				Seq:         frame.Seq,
				Time:        frame.PTS,
			})
		}

		s.publishFrame(log, frame, lastResult, lastUnwanted, classified)

		s.stateLock.Lock()
		s.state.FrameCount = frame.Seq + 1
		s.state.LastLabel = lastResult.Label
		s.state.LastConfidence = lastResult.Confidence
		s.state.AlarmOn = s.debounce.isAlarmOn()
		s.state.UnwantedRun = s.debounce.count
		s.state.ClassifyMS = float64(s.classifyNS.Load()) / 1e6
		s.stateLock.Unlock()
	}

	log.Infof("Session finished after %v frames", s.State().FrameCount)
}

// raiseAlert persists the evidence and starts the audible alarm. The evidence
// image carries the annotation overlay, so a reviewer sees what the
// classifier saw.
func (s *Session) raiseAlert(log logs.Log, frame *camera.Frame, result classify.Result) {
	evidence := annotate(frame.Image, result, true)
	jpg, err := cimg.Compress(evidence, cimg.MakeCompressParams(cimg.Sampling420, s.monitor.cfg.JPEGQuality, 0))
	if err != nil {
		log.Errorf("Failed to encode evidence image: %v. Alert dropped.", err)
	} else {
		s.monitor.sink.raise(s.Subject, result.Label, jpg, s.debounce.Now())
	}
	s.alarm.Start()
}

// publishFrame sends the frame to any attached viewers. Only frames that
// were classified get the annotation overlay; intervening frames pass
// through untouched.
func (s *Session) publishFrame(log logs.Log, frame *camera.Frame, result classify.Result, unwanted bool, classified bool) {
	if !s.hasFrameWatchers() {
		// Nobody is viewing this session, skip the annotate+compress work
		return
	}
	out := frame.Image
	if classified {
		out = annotate(frame.Image, result, unwanted)
	}
	jpg, err := cimg.Compress(out, cimg.MakeCompressParams(cimg.Sampling420, s.monitor.cfg.JPEGQuality, 0))
	if err != nil {
		log.Errorf("Failed to compress annotated frame: %v", err)
		return
	}
	s.sendToFrameWatchers(&AnnotatedFrame{JPEG: jpg, Seq: frame.Seq})
}

func sessionLogPrefix(id int64) string {
	return "Session " + strconv.FormatInt(id, 10) + ":"
}
