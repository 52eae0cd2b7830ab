package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hn770123/memory-assistant-v3/internal/domain/model"
)

// ExtractionAPI is the slice of the server surface the watcher needs.
type ExtractionAPI interface {
	ProcessingStatus(ctx context.Context) (model.ExtractionStatus, error)
}

var _ ExtractionAPI = (*Client)(nil)

const defaultWatchInterval = time.Second

// ChatStatusWatcher tracks the post-chat memory extraction job: a binary
// processing/idle indicator, no cursor. It is deliberately a separate
// state machine from JobPoller; the two jobs have independent lifecycles
// and nothing to share.
//
// Begin replaces any active watch, so only the latest chat turn's
// extraction is tracked. Earlier extractions keep running server-side;
// their completion just is not individually surfaced.
type ChatStatusWatcher struct {
	api       ExtractionAPI
	indicator IndicatorView
	logs      LogView
	interval  time.Duration
	log       *zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	gen    uint64
}

func NewChatStatusWatcher(api ExtractionAPI, indicator IndicatorView, logs LogView, interval time.Duration, logger *zerolog.Logger) *ChatStatusWatcher {
	if interval <= 0 {
		interval = defaultWatchInterval
	}
	l := logger.With().Str("component", "status-watcher").Logger()
	return &ChatStatusWatcher{
		api:       api,
		indicator: indicator,
		logs:      logs,
		interval:  interval,
		log:       &l,
	}
}

// Begin shows the processing indicator and starts polling until the
// extraction settles.
func (w *ChatStatusWatcher) Begin(ctx context.Context) {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.gen++
	gen := w.gen
	w.mu.Unlock()

	w.indicator.SetProcessing(true)
	go w.loop(runCtx, gen)
}

// Stop cancels an active watch and hides the indicator.
func (w *ChatStatusWatcher) Stop() {
	w.mu.Lock()
	w.stopLocked()
	w.mu.Unlock()
	w.indicator.SetProcessing(false)
}

// Watching reports whether a watch loop is active.
func (w *ChatStatusWatcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancel != nil
}

func (w *ChatStatusWatcher) stopLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.gen++
}

func (w *ChatStatusWatcher) loop(ctx context.Context, gen uint64) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !w.tick(ctx, gen) {
				return
			}
		}
	}
}

// tick polls once. A fetch failure is treated exactly like completion:
// a broken status channel must never leave a permanent busy indicator.
func (w *ChatStatusWatcher) tick(ctx context.Context, gen uint64) bool {
	status, err := w.api.ProcessingStatus(ctx)

	w.mu.Lock()
	if gen != w.gen {
		w.mu.Unlock()
		return false
	}
	if err != nil || !status.Processing {
		w.stopLocked()
		w.mu.Unlock()
		if err != nil {
			w.log.Warn().Err(err).Msg("processing status poll failed, hiding indicator")
		}
		w.indicator.SetProcessing(false)
		if err == nil && len(status.Logs) > 0 {
			// Fires exactly once, at the transition to idle.
			w.logs.Append(model.LogEvent{
				Step:      "extraction",
				Status:    model.StepCompleted,
				Message:   fmt.Sprintf("memory extraction finished (%d log entries)", len(status.Logs)),
				Response:  status.Logs,
				Timestamp: time.Now(),
			})
		}
		return false
	}
	w.mu.Unlock()
	return true
}
