package client

import "github.com/hn770123/memory-assistant-v3/internal/domain/model"

// Display-surface ports. The pollers drive these; terminal
// implementations live in console.go, recording fakes in the tests.

// LogView is the detail log surface. Every event of a run is appended
// exactly once, in stream order.
type LogView interface {
	Append(ev model.LogEvent)
}

// ProgressView is the step summary surface for the organize job.
type ProgressView interface {
	// Clear wipes the surface at the start of a new run.
	Clear()
	// Step reflects a progress event (started/processing/completed/error,
	// optional counters).
	Step(ev model.LogEvent)
	// ShowClose reveals the close affordance once the run is over.
	ShowClose()
}

// IndicatorView is the binary busy marker for the extraction watcher.
type IndicatorView interface {
	SetProcessing(on bool)
}

// ChatView is the conversation surface driven by ChatSession.
type ChatView interface {
	ShowUser(text string)
	ShowAssistant(text string)
	// ShowSystem renders errors and notices (history reset, test logs).
	ShowSystem(text string)
	SetLoading(on bool)
	// SetInputEnabled(true) also refocuses the input on surfaces that
	// have a focus concept.
	SetInputEnabled(on bool)
}
