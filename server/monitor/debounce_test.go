package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeClock drives the debounce's notion of time.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestDebounce(clock *fakeClock) *debounce {
	d := newDebounce(10, 10*time.Second)
	d.Now = func() time.Time { return clock.now }
	return d
}

func feed(d *debounce, clock *fakeClock, unwanted bool, n int, frameInterval time.Duration) int {
	alerts := 0
	for i := 0; i < n; i++ {
		clock.Advance(frameInterval)
		if d.vote(unwanted).RaiseAlert {
			alerts++
		}
	}
	return alerts
}

func TestDebounceFiresAtEleventhFrame(t *testing.T) {
	clock := newFakeClock()
	d := newTestDebounce(clock)
	for i := 1; i <= 11; i++ {
		dec := d.vote(true)
		if i <= 10 {
			require.False(t, dec.RaiseAlert, "frame %v must not fire", i)
			require.Equal(t, i, dec.Count)
		} else {
			require.True(t, dec.RaiseAlert, "frame 11 exceeds the threshold")
			require.Equal(t, 0, dec.Count, "run resets after firing")
			require.True(t, d.isAlarmOn())
		}
	}
}

func TestDebounceWantedVoteResets(t *testing.T) {
	clock := newFakeClock()
	d := newTestDebounce(clock)
	require.Equal(t, 0, feed(d, clock, true, 9, 0))
	dec := d.vote(false)
	require.Equal(t, 0, dec.Count)
	require.False(t, dec.StopAlarm, "no alarm was sounding")
	// The run must start from scratch
	require.Equal(t, 0, feed(d, clock, true, 10, 0))
	require.Equal(t, 1, feed(d, clock, true, 1, 0))
}

func TestDebounceCooldownSuppresses(t *testing.T) {
	clock := newFakeClock()
	d := newTestDebounce(clock)
	// 15 unwanted frames, ~33ms apart: exactly one alert
	require.Equal(t, 1, feed(d, clock, true, 15, 33*time.Millisecond))
	// A second burst within 5 simulated seconds is suppressed
	clock.Advance(4 * time.Second)
	require.Equal(t, 0, feed(d, clock, true, 15, 33*time.Millisecond))
}

func TestDebounceCooldownCarryover(t *testing.T) {
	clock := newFakeClock()
	d := newTestDebounce(clock)
	require.Equal(t, 1, feed(d, clock, true, 11, 0))
	// Keep voting unwanted inside the cooldown: count grows past the
	// threshold but nothing fires
	require.Equal(t, 0, feed(d, clock, true, 20, 0))
	// The first qualifying frame after the cooldown fires immediately,
	// without needing a fresh 11-frame run
	clock.Advance(10 * time.Second)
	dec := d.vote(true)
	require.True(t, dec.RaiseAlert)
}

func TestDebounceCooldownMonotonicity(t *testing.T) {
	clock := newFakeClock()
	d := newTestDebounce(clock)
	alertTimes := []time.Time{}
	for i := 0; i < 2000; i++ {
		clock.Advance(33 * time.Millisecond)
		if d.vote(true).RaiseAlert {
			alertTimes = append(alertTimes, clock.now)
		}
	}
	require.GreaterOrEqual(t, len(alertTimes), 2)
	for i := 1; i < len(alertTimes); i++ {
		require.GreaterOrEqual(t, alertTimes[i].Sub(alertTimes[i-1]), 10*time.Second)
	}
}

func TestDebounceImmediateSilence(t *testing.T) {
	clock := newFakeClock()
	d := newTestDebounce(clock)
	require.Equal(t, 1, feed(d, clock, true, 11, 0))
	require.True(t, d.isAlarmOn())
	dec := d.vote(false)
	require.True(t, dec.StopAlarm, "one wanted frame silences the alarm")
	require.False(t, d.isAlarmOn())
	require.Equal(t, 0, dec.Count)
}

func TestDebounceErrorSentinelNeverFires(t *testing.T) {
	clock := newFakeClock()
	d := newTestDebounce(clock)
	// The classifier error sentinel is not an unwanted vote
	for i := 0; i < 20; i++ {
		dec := d.vote(false)
		require.False(t, dec.RaiseAlert)
		require.Equal(t, 0, dec.Count)
	}
}

func TestDebounceAlternatingNeverFires(t *testing.T) {
	clock := newFakeClock()
	d := newTestDebounce(clock)
	for i := 0; i < 100; i++ {
		clock.Advance(33 * time.Millisecond)
		require.False(t, d.vote(i%2 == 0).RaiseAlert)
	}
}
