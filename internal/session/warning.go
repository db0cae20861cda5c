package session

import (
	"sync"
	"time"
)

// DefaultWarnAfter is the elapsed time before the wrap-up warning fires.
const DefaultWarnAfter = 5 * time.Minute

// WarningTimer fires a one-shot wrap-up notification after a fixed elapsed
// duration. It is armed when the session becomes active, disarmed whenever
// the session leaves the active phase, and never reschedules itself.
type WarningTimer struct {
	d time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewWarningTimer(d time.Duration) *WarningTimer {
	if d <= 0 {
		d = DefaultWarnAfter
	}
	return &WarningTimer{d: d}
}

// Arm schedules fire once. Arming again replaces any pending timer.
func (w *WarningTimer) Arm(fire func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.d, fire)
}

// Disarm cancels a pending warning. Safe to call when nothing is armed.
func (w *WarningTimer) Disarm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
