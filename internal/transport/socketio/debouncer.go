package socketio

import (
	"sync"
	"time"
)

// PushDebouncer collapses bursts of triggers into one callback fired after
// the window elapses without further triggers.
type PushDebouncer struct {
	window   time.Duration
	callback func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewPushDebouncer creates a debouncer. A zero window fires synchronously.
func NewPushDebouncer(window time.Duration, callback func()) *PushDebouncer {
	return &PushDebouncer{window: window, callback: callback}
}

// Trigger schedules the callback, restarting the window.
func (d *PushDebouncer) Trigger() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.window <= 0 {
		d.mu.Unlock()
		d.callback()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
	d.mu.Unlock()
}

func (d *PushDebouncer) fire() {
	d.mu.Lock()
	stopped := d.stopped
	d.timer = nil
	d.mu.Unlock()

	if !stopped {
		d.callback()
	}
}

// Stop cancels any pending callback and ignores later triggers.
func (d *PushDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
