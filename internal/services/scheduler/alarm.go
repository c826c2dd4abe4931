package scheduler

import (
	"sync"
	"time"
)

// defaultMaxSleep bounds how late an alarm fires after the process resumes
// from suspension.
const defaultMaxSleep = 30 * time.Second

// Clock reads the wall clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Alarms runs a callback at an absolute wall-clock time. The returned
// function cancels the alarm; calling it after the alarm fired is a no-op.
type Alarms interface {
	At(t time.Time, fn func()) (cancel func())
}

// WallAlarm implements Alarms with goroutines that sleep in bounded
// chunks and compare against the wall clock after each one. Go timers run
// on the monotonic clock, which stops while the machine sleeps.
type WallAlarm struct {
	now      func() time.Time
	MaxSleep time.Duration
}

// NewWallAlarm returns a WallAlarm using the system clock.
func NewWallAlarm() *WallAlarm {
	return &WallAlarm{MaxSleep: defaultMaxSleep, now: time.Now}
}

// At arms an alarm for t.
func (a *WallAlarm) At(t time.Time, fn func()) func() {
	target := t.Round(0)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	go func() {
		for {
			now := a.now().Round(0)
			if !now.Before(target) {
				select {
				case <-done:
				default:
					cancel()
					fn()
				}
				return
			}

			wait := target.Sub(now)
			if a.MaxSleep > 0 && wait > a.MaxSleep {
				wait = a.MaxSleep
			}

			timer := time.NewTimer(wait)
			select {
			case <-done:
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()

	return cancel
}
