package model

import "time"

// Log event type tags. An empty Type (or anything other than
// TypeLLMInteraction) marks a progress/step event.
const TypeLLMInteraction = "llm_interaction"

// Step identifiers for the organize job, in execution order.
const (
	StepOverall   = "overall"
	StepAttribute = "attribute"
	StepEpisode   = "episode"
	StepGoal      = "goal"
	StepRequest   = "request"
)

// StepStatus is the state reported by a progress event.
type StepStatus string

const (
	StepStarted    StepStatus = "started"
	StepProcessing StepStatus = "processing"
	StepCompleted  StepStatus = "completed"
	StepSkipped    StepStatus = "skipped"
	StepError      StepStatus = "error"
)

// StepProgress carries optional item counters for a processing event.
type StepProgress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// LogEvent is one entry of a job's append-only log stream. It is a tagged
// union: progress events fill Step/Status/Message/Progress, LLM interaction
// events (Type == TypeLLMInteraction) fill Action/Prompt/Response.
//
// NOTE: field names are part of the wire contract consumed by polling
// clients; extend additively only.
type LogEvent struct {
	ID          string        `json:"id,omitempty"`
	Type        string        `json:"type,omitempty"`
	Step        string        `json:"step,omitempty"`
	StepDisplay string        `json:"step_display,omitempty"`
	Status      StepStatus    `json:"status,omitempty"`
	Message     string        `json:"message,omitempty"`
	Progress    *StepProgress `json:"progress,omitempty"`
	Action      string        `json:"action,omitempty"`
	Prompt      string        `json:"prompt,omitempty"`
	Response    any           `json:"response,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
}

// IsInteraction reports whether the event is an LLM interaction entry.
func (e LogEvent) IsInteraction() bool { return e.Type == TypeLLMInteraction }

// OrganizeStatus is the poll response for the organize job.
// Logs is cumulative and append-only for the lifetime of one run.
type OrganizeStatus struct {
	IsOrganizing bool       `json:"is_organizing"`
	Logs         []LogEvent `json:"logs"`
}

// ExtractionStatus is the poll response for the post-chat memory
// extraction job.
type ExtractionStatus struct {
	Processing bool       `json:"processing"`
	Logs       []LogEvent `json:"logs,omitempty"`
}
