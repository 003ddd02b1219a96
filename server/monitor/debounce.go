package monitor

import (
	"time"
)

// debounce smooths noisy per-frame classifications into stable alert
// decisions. One instance per session, touched only by that session's worker
// goroutine, so it needs no locking.
type debounce struct {
	// Threshold is the run length that must be exceeded before an alert fires.
	Threshold int
	// Cooldown is the minimum gap between two alerts on the same session.
	Cooldown time.Duration
	// Now is replaceable for tests.
	Now func() time.Time

	count       int
	lastAlertAt time.Time // zero until the first alert
	alarmOn     bool
}

// decision is the outcome of feeding one classified frame into the debounce.
type decision struct {
	// RaiseAlert means this frame produced an alert: persist evidence and
	// raise the audible alarm.
	RaiseAlert bool
	// StopAlarm means a wanted pose arrived while the alarm was sounding.
	StopAlarm bool
	// Count is the consecutive unwanted run length after this frame.
	Count int
}

func newDebounce(threshold int, cooldown time.Duration) *debounce {
	return &debounce{
		Threshold: threshold,
		Cooldown:  cooldown,
		Now:       time.Now,
	}
}

// vote consumes one frame's verdict.
//
// An unwanted vote grows the run. A wanted vote (including the classifier's
// error sentinel) resets the run to zero and silences the alarm immediately,
// regardless of cooldown.
//
// An alert fires when the run exceeds Threshold and the cooldown has
// elapsed (or no alert has fired yet). Firing resets the run. If the run
// exceeds Threshold while still inside the cooldown, the run keeps growing
// without firing, so the first frame after the cooldown expires can fire
// immediately without needing a fresh run.
func (d *debounce) vote(unwanted bool) decision {
	dec := decision{}
	if unwanted {
		d.count++
	} else {
		d.count = 0
		if d.alarmOn {
			d.alarmOn = false
			dec.StopAlarm = true
		}
	}
	if d.count > d.Threshold && d.cooldownExpired() {
		d.lastAlertAt = d.Now()
		d.count = 0
		d.alarmOn = true
		dec.RaiseAlert = true
	}
	dec.Count = d.count
	return dec
}

func (d *debounce) cooldownExpired() bool {
	return d.lastAlertAt.IsZero() || d.Now().Sub(d.lastAlertAt) >= d.Cooldown
}

func (d *debounce) isAlarmOn() bool {
	return d.alarmOn
}
