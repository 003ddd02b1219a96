// Package monitor runs the pose detection pipeline: it pulls frames from a
// camera source, classifies them, debounces the classifications into alert
// decisions, and fans annotated frames and events out to watchers.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/bmharper/ringbuffer"
	"github.com/cyclopcam/logs"
	"github.com/poseguard/poseguard/server/alarm"
	"github.com/poseguard/poseguard/server/alertdb"
	"github.com/poseguard/poseguard/server/camera"
	"github.com/poseguard/poseguard/server/classify"
	"github.com/poseguard/poseguard/server/storage"
)

// DetectionConfig are the tunables of the debounce pipeline.
type DetectionConfig struct {
	// FrameStride classifies every Nth frame. 1 = every frame.
	FrameStride int `json:"frameStride"`
	// ConfidenceThreshold is the exclusive lower bound for a classification
	// to count as an unwanted-pose vote.
	ConfidenceThreshold float32 `json:"confidenceThreshold"`
	// RunLengthThreshold is the consecutive unwanted run that must be
	// exceeded before an alert fires.
	RunLengthThreshold int `json:"runLengthThreshold"`
	// CooldownSeconds is the minimum gap between alerts on one session.
	CooldownSeconds int `json:"cooldownSeconds"`
	// JPEGQuality is the compression quality of published frames.
	JPEGQuality int `json:"jpegQuality"`
}

func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		FrameStride:         2,
		ConfidenceThreshold: 0.7,
		RunLengthThreshold:  10,
		CooldownSeconds:     10,
		JPEGQuality:         80,
	}
}

func (c *DetectionConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// Event is one classified frame's outcome, sent to event watchers.
type Event struct {
	SessionID   int64     `json:"sessionID"`
	Subject     string    `json:"subject"`
	Label       string    `json:"label"`
	Confidence  float32   `json:"confidence"`
	Unwanted    bool      `json:"unwanted"`
	AlarmOn     bool      `json:"alarmOn"`
	AlertRaised bool      `json:"alertRaised"`
	Seq         int64     `json:"seq"`
	Time        time.Time `json:"time"`
}

// Monitor owns the classifier boundary and the set of running sessions.
// At most one session may consume the live capture device at a time;
// file-based sessions run concurrently without limit.
type Monitor struct {
	Log        logs.Log
	classifier classify.Classifier
	cfg        DetectionConfig
	sink       *alertSink
	player     alarm.Player

	sessionsLock  sync.Mutex
	sessions      map[int64]*Session
	nextSessionID int64
	liveSession   *Session

	watchersLock  sync.RWMutex
	eventWatchers []chan *Event

	historyLock sync.Mutex
	history     ringbuffer.RingP[*Event]
}

func NewMonitor(log logs.Log, classifier classify.Classifier, store storage.Storage, alertDB *alertdb.AlertDB, cfg DetectionConfig, player alarm.Player) *Monitor {
	return &Monitor{
		Log:        log,
		classifier: classifier,
		cfg:        cfg,
		sink: &alertSink{
			log:     log,
			storage: store,
			alertDB: alertDB,
		},
		player:        player,
		sessions:      map[int64]*Session{},
		nextSessionID: 1,
		history:       ringbuffer.NewRingP[*Event](eventHistorySize),
	}
}

// eventHistorySize bounds the rolling window of recent events kept for the
// history API. Must be a power of 2.
const eventHistorySize = 256

// RecentEvents returns up to 'max' of the most recent classification events,
// oldest first. max <= 0 means all retained events.
func (m *Monitor) RecentEvents(max int) []*Event {
	m.historyLock.Lock()
	defer m.historyLock.Unlock()
	n := m.history.Len()
	if max > 0 && n > max {
		n = max
	}
	events := make([]*Event, 0, n)
	for i := m.history.Len() - n; i < m.history.Len(); i++ {
		events = append(events, m.history.Peek(i))
	}
	return events
}

func (m *Monitor) recordEvent(ev *Event) {
	m.historyLock.Lock()
	defer m.historyLock.Unlock()
	m.history.Add(ev)
}

func (m *Monitor) Config() DetectionConfig {
	return m.cfg
}

// ClassifierAlive reports whether the classifier service is reachable.
func (m *Monitor) ClassifierAlive() error {
	return m.classifier.IsAlive()
}

// StartSession spawns a worker that consumes 'source' until the source ends
// or the session is stopped. 'subject' identifies the monitored person in
// alerts (we use the account email). 'live' marks the session as the
// exclusive consumer of the capture device.
func (m *Monitor) StartSession(source camera.Source, subject string, live bool) (*Session, error) {
	m.sessionsLock.Lock()
	defer m.sessionsLock.Unlock()
	if live && m.liveSession != nil {
		return nil, fmt.Errorf("The live camera is already in use by session %v", m.liveSession.ID)
	}
	s := &Session{
		ID:        m.nextSessionID,
		Subject:   subject,
		Live:      live,
		StartedAt: time.Now(),
		monitor:   m,
		source:    source,
		debounce:  newDebounce(m.cfg.RunLengthThreshold, m.cfg.Cooldown()),
		alarm:     alarm.NewLoop(logs.NewPrefixLogger(m.Log, sessionLogPrefix(m.nextSessionID)), m.player),
		stopped:   make(chan struct{}),
	}
	m.nextSessionID++
	m.sessions[s.ID] = s
	if live {
		m.liveSession = s
	}
	m.Log.Infof("Session %v started (subject %v, source %v, live %v)", s.ID, subject, source.Label(), live)
	go s.run()
	return s, nil
}

// SessionByID returns nil if the session does not exist (eg already ended).
func (m *Monitor) SessionByID(id int64) *Session {
	m.sessionsLock.Lock()
	defer m.sessionsLock.Unlock()
	return m.sessions[id]
}

func (m *Monitor) ListSessions() []*Session {
	m.sessionsLock.Lock()
	defer m.sessionsLock.Unlock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list
}

// Close stops all sessions and waits for their workers to exit.
func (m *Monitor) Close() {
	for _, s := range m.ListSessions() {
		s.Stop()
	}
}

func (m *Monitor) removeSession(s *Session) {
	m.sessionsLock.Lock()
	defer m.sessionsLock.Unlock()
	delete(m.sessions, s.ID)
	if m.liveSession == s {
		m.liveSession = nil
	}
}
