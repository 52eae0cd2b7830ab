package model

import "time"

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one entry of the per-session conversation history.
type ChatMessage struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// ChatTurn is the transient result of a single request/response exchange.
// It has no lifecycle beyond being rendered once.
type ChatTurn struct {
	UserText      string     `json:"-"`
	AssistantText string     `json:"response"`
	HistoryReset  bool       `json:"history_reset"`
	TestLogs      []LogEvent `json:"test_logs,omitempty"`
}
