package usecase

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
)

// JobLog is the server-side half of the polling contract: an append-only,
// cumulative event log for one background job at a time. Snapshots taken
// while a run is active are always prefix-extensions of earlier snapshots;
// the log is only cleared when a new run starts.
type JobLog struct {
	mu      sync.Mutex
	running bool
	events  []model.LogEvent
}

func NewJobLog() *JobLog { return &JobLog{} }

// TryStart clears the log and marks a run active. It reports false when a
// run is already in progress, so callers can reject a double start.
func (l *JobLog) TryStart() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return false
	}
	l.running = true
	l.events = l.events[:0]
	return true
}

// Append records one event. ID and timestamp are assigned here so entries
// stay ordered even when emitted from helper goroutines.
func (l *JobLog) Append(ev model.LogEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.ID == "" {
		ev.ID = ulid.Make().String()
	}
	l.events = append(l.events, ev)
}

// Finish marks the run inactive. The accumulated events stay readable until
// the next TryStart.
func (l *JobLog) Finish() {
	l.mu.Lock()
	l.running = false
	l.mu.Unlock()
}

// Snapshot returns the running flag and a copy of the events seen so far.
func (l *JobLog) Snapshot() (bool, []model.LogEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.LogEvent, len(l.events))
	copy(out, l.events)
	return l.running, out
}

// Running reports whether a run is active.
func (l *JobLog) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}
