package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
)

// OrganizeAPI is the slice of the server surface the poller needs.
type OrganizeAPI interface {
	StartOrganize(ctx context.Context) error
	OrganizeStatus(ctx context.Context) (model.OrganizeStatus, error)
}

var _ OrganizeAPI = (*Client)(nil)

const defaultPollInterval = 500 * time.Millisecond

// JobPoller is a restartable polling state machine for the organize job.
// It owns the display cursor for the organize log stream: each tick
// renders exactly the events appended since the previous tick, so every
// event reaches the detail surface exactly once no matter how the stream
// is chunked across polls.
//
// At most one poll goroutine is live; Start cancels any previous one
// before installing the next. A generation counter guards against a
// stale in-flight tick applying state after it was replaced.
type JobPoller struct {
	api      OrganizeAPI
	logs     LogView
	progress ProgressView
	interval time.Duration
	log      *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
	cursor int
}

func NewJobPoller(api OrganizeAPI, logs LogView, progress ProgressView, interval time.Duration, logger *zerolog.Logger) *JobPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	l := logger.With().Str("component", "job-poller").Logger()
	return &JobPoller{
		api:      api,
		logs:     logs,
		progress: progress,
		interval: interval,
		log:      &l,
	}
}

// Start signals the server to begin an organize run and starts polling.
// On a rejected start it surfaces a single error entry and never begins
// polling. A Start while a previous poll is active replaces it; the
// cursor is reset so the new run renders from position zero.
func (p *JobPoller) Start(ctx context.Context) error {
	if err := p.api.StartOrganize(ctx); err != nil {
		p.logs.Append(errorEvent("failed to start organize: " + err.Error()))
		return err
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.gen++
	gen := p.gen
	p.cursor = 0
	p.mu.Unlock()

	p.progress.Clear()
	p.progress.Step(model.LogEvent{
		Step:      model.StepOverall,
		Status:    model.StepStarted,
		Message:   "organize started",
		Timestamp: time.Now(),
	})

	go p.loop(runCtx, gen)
	return nil
}

// Stop cancels any active poll without touching the display surfaces.
func (p *JobPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Running reports whether a poll loop is active.
func (p *JobPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *JobPoller) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	// Invalidate any tick still in flight.
	p.gen++
}

func (p *JobPoller) loop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.tick(ctx, gen) {
				return
			}
		}
	}
}

// tick fetches status once and renders the delta. It returns false when
// polling must stop: terminal fetch failure, job completion, or the tick
// turned stale because Start or Stop ran while the fetch was in flight.
func (p *JobPoller) tick(ctx context.Context, gen uint64) bool {
	status, err := p.api.OrganizeStatus(ctx)

	p.mu.Lock()
	if gen != p.gen {
		// Replaced while the fetch was in flight; the result belongs to
		// a dead lineage and must not touch the cursor.
		p.mu.Unlock()
		return false
	}
	if err != nil {
		p.stopLocked()
		p.mu.Unlock()
		p.log.Warn().Err(err).Msg("status poll failed, stopping")
		p.logs.Append(errorEvent("status poll failed: " + err.Error()))
		p.progress.ShowClose()
		return false
	}

	var delta []model.LogEvent
	if p.cursor < len(status.Logs) {
		delta = status.Logs[p.cursor:]
		p.cursor = len(status.Logs)
	}
	done := !status.IsOrganizing
	if done {
		p.stopLocked()
		p.cursor = 0
	}
	p.mu.Unlock()

	for _, ev := range delta {
		p.logs.Append(ev)
		if !ev.IsInteraction() {
			p.progress.Step(ev)
		}
	}
	if done {
		p.progress.ShowClose()
	}
	return !done
}

func errorEvent(msg string) model.LogEvent {
	return model.LogEvent{
		Step:      model.StepOverall,
		Status:    model.StepError,
		Message:   msg,
		Timestamp: time.Now(),
	}
}
