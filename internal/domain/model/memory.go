package model

import "time"

// Compression levels applied by the organize job.
const (
	CompressionNone   = 0
	CompressionLight  = 1
	CompressionMedium = 2
	CompressionStrong = 3
)

// Attribute is a basic fact about the user (name, age, occupation...).
type Attribute struct {
	ID               int64     `json:"id"`
	Name             string    `json:"attribute_name"`
	Value            string    `json:"attribute_value"`
	CompressionLevel int       `json:"compression_level"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Episode is a remembered everyday event, preference or experience.
type Episode struct {
	ID               int64     `json:"id"`
	Content          string    `json:"memory_content"`
	Category         string    `json:"memory_category"` // general | preference | event | knowledge
	AccessCount      int       `json:"access_count"`
	CompressionLevel int       `json:"compression_level"`
	Active           bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	LastAccessedAt   time.Time `json:"last_accessed_at"`
}

// Goal statuses.
const (
	GoalActive    = "active"
	GoalCompleted = "completed"
	GoalCancelled = "cancelled"
)

// Goal is something the user wants to achieve. Priority runs 1 (highest)
// to 10 (lowest); 5 is the default.
type Goal struct {
	ID               int64      `json:"id"`
	Content          string     `json:"goal_content"`
	Status           string     `json:"goal_status"`
	Priority         int        `json:"priority"`
	CompressionLevel int        `json:"compression_level"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// AssistantRequest is a standing instruction to the assistant
// (tone, behavior, format...).
type AssistantRequest struct {
	ID        int64     `json:"id"`
	Content   string    `json:"request_content"`
	Category  string    `json:"request_category"` // tone | behavior | format | general
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
