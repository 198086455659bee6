package worker

import (
	"sync/atomic"
	"time"
)

// Tracker exposes what the worker is doing right now. The health listener
// reads it from another goroutine, so the current job id is atomic.
type Tracker struct {
	started time.Time
	current atomic.Int64 // 0 means idle
}

func NewTracker() *Tracker {
	return &Tracker{started: time.Now()}
}

func (t *Tracker) SetCurrent(jobID int64) { t.current.Store(jobID) }

func (t *Tracker) ClearCurrent() { t.current.Store(0) }

// CurrentJob returns the job being processed, if any.
func (t *Tracker) CurrentJob() (int64, bool) {
	id := t.current.Load()
	return id, id != 0
}

func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.started)
}
