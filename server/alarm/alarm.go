// Package alarm drives the audible alert signal.
// A Loop repeatedly invokes a Player while the alarm is raised. Each monitor
// session owns its own Loop, so alarms from different sessions do not
// interfere with each other.
package alarm

import (
	"sync"
	"time"

	"github.com/cyclopcam/logs"
)

// PollInterval is the pause between player invocations while the alarm is
// raised, and the latency bound on noticing Stop.
const PollInterval = 100 * time.Millisecond

// Player emits one burst of the alarm sound. It may block for the duration
// of the sound.
type Player func() error

type Loop struct {
	log    logs.Log
	player Player

	lock    sync.Mutex
	live    bool
	stopped chan struct{} // closed by the play goroutine on exit
}

func NewLoop(log logs.Log, player Player) *Loop {
	return &Loop{
		log:    log,
		player: player,
	}
}

// Start raises the alarm. Calling Start while the alarm is already live is a
// no-op.
func (a *Loop) Start() {
	a.lock.Lock()
	defer a.lock.Unlock()
	if a.live {
		return
	}
	a.live = true
	a.stopped = make(chan struct{})
	go a.play(a.stopped)
}

// Stop silences the alarm. Calling Stop while the alarm is not live is a
// no-op. Stop does not wait for an in-flight player invocation to finish.
func (a *Loop) Stop() {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.live = false
}

// IsLive reports whether the alarm is currently raised.
func (a *Loop) IsLive() bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.live
}

// WaitStopped blocks until the play goroutine from the most recent Start has
// exited. Used by tests and session teardown.
func (a *Loop) WaitStopped() {
	a.lock.Lock()
	stopped := a.stopped
	a.lock.Unlock()
	if stopped != nil {
		<-stopped
	}
}

func (a *Loop) play(stopped chan struct{}) {
	defer close(stopped)
	for a.isCurrent(stopped) {
		if err := a.player(); err != nil {
			a.log.Errorf("Alarm player failed: %v", err)
		}
		time.Sleep(PollInterval)
	}
}

// isCurrent is true while the alarm is live and this goroutine is still the
// active generation. A Stop followed quickly by a Start spawns a fresh
// goroutine, and the old one must not resume playing.
func (a *Loop) isCurrent(stopped chan struct{}) bool {
	a.lock.Lock()
	defer a.lock.Unlock()
	return a.live && a.stopped == stopped
}
