package monitor

import "github.com/poseguard/poseguard/pkg/gen"

// SYNC-WATCHER-CHANNEL-SIZE
const WatcherChannelSize = 100

// AddEventWatcher registers for classification events from all sessions.
func (m *Monitor) AddEventWatcher() chan *Event {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	ch := make(chan *Event, WatcherChannelSize)
	m.eventWatchers = append(m.eventWatchers, ch)
	return ch
}

func (m *Monitor) RemoveEventWatcher(ch chan *Event) {
	m.watchersLock.Lock()
	defer m.watchersLock.Unlock()
	for i, w := range m.eventWatchers {
		if w == ch {
			m.eventWatchers = gen.DeleteFromSliceUnordered(m.eventWatchers, i)
			return
		}
	}
	m.Log.Warnf("Monitor.RemoveEventWatcher failed to find channel")
}

func (m *Monitor) sendEvent(ev *Event) {
	m.recordEvent(ev)
	m.watchersLock.RLock()
	defer m.watchersLock.RUnlock()
	for _, ch := range m.eventWatchers {
		// SYNC-WATCHER-CHANNEL-SIZE
		// If a watcher stalls we drop events rather than stall the session
		// worker. Other watchers keep receiving.
		if len(ch) >= cap(ch)*9/10 {
			m.Log.Warnf("Monitor event watcher is falling behind. I am going to drop events.")
		} else {
			ch <- ev
		}
	}
}

// AddFrameWatcher registers for this session's annotated frames.
func (s *Session) AddFrameWatcher() chan *AnnotatedFrame {
	s.frameWatchersLock.Lock()
	defer s.frameWatchersLock.Unlock()
	ch := make(chan *AnnotatedFrame, WatcherChannelSize)
	s.frameWatchers = append(s.frameWatchers, ch)
	return ch
}

func (s *Session) RemoveFrameWatcher(ch chan *AnnotatedFrame) {
	s.frameWatchersLock.Lock()
	defer s.frameWatchersLock.Unlock()
	for i, w := range s.frameWatchers {
		if w == ch {
			s.frameWatchers = gen.DeleteFromSliceUnordered(s.frameWatchers, i)
			return
		}
	}
	s.monitor.Log.Warnf("Session.RemoveFrameWatcher failed to find channel")
}

func (s *Session) hasFrameWatchers() bool {
	s.frameWatchersLock.RLock()
	defer s.frameWatchersLock.RUnlock()
	return len(s.frameWatchers) != 0
}

func (s *Session) sendToFrameWatchers(frame *AnnotatedFrame) {
	s.frameWatchersLock.RLock()
	defer s.frameWatchersLock.RUnlock()
	for _, ch := range s.frameWatchers {
		// SYNC-WATCHER-CHANNEL-SIZE
		if len(ch) >= cap(ch)*9/10 {
			// A stalled viewer must not stall the pipeline, so we drop
		} else {
			ch <- frame
		}
	}
}
