package agent

import "time"

type Status string
type DocumentStatus string

const (
	StatusActive      Status = "active"
	StatusPaused      Status = "paused"
	StatusConfiguring Status = "configuring"
	StatusError       Status = "error"

	DocumentPending DocumentStatus = "pending"
	DocumentSynced  DocumentStatus = "synced"
	DocumentRemoved DocumentStatus = "removed"
)

// Document is one knowledge-base file attached to an agent. ExternalID is the
// voice provider's file id once the document has been synced.
type Document struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Content    string         `json:"content,omitempty"`
	ExternalID string         `json:"external_id,omitempty"`
	Status     DocumentStatus `json:"status"`
	UploadedAt time.Time      `json:"uploaded_at"`
}

// Agent is a configured voice assistant bound to one restaurant and one
// voice-provider resource.
type Agent struct {
	ID                 int64      `json:"id" db:"id"`
	RestaurantID       int64      `json:"restaurant_id" db:"restaurant_id"`
	ExternalAgentID    *string    `json:"external_agent_id,omitempty" db:"external_agent_id"`
	VoiceID            *string    `json:"voice_id,omitempty" db:"voice_id"`
	PhoneNumber        *string    `json:"phone_number,omitempty" db:"phone_number"`
	PhoneNumberSID     *string    `json:"phone_number_sid,omitempty" db:"phone_number_sid"`
	Greeting           string     `json:"greeting" db:"greeting"`
	Style              string     `json:"style" db:"style"`
	MaxDurationMinutes int        `json:"max_duration_minutes" db:"max_duration_minutes"`
	VoicemailEnabled   bool       `json:"voicemail_enabled" db:"voicemail_enabled"`
	Documents          []Document `json:"documents"`
	Status             Status     `json:"status" db:"status"`
	CallCount          int64      `json:"call_count" db:"call_count"`
	TotalCallSeconds   int64      `json:"total_call_seconds" db:"total_call_seconds"`
	LastError          *string    `json:"last_error,omitempty" db:"last_error"`
	LastErrorAt        *time.Time `json:"last_error_at,omitempty" db:"last_error_at"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at" db:"updated_at"`
}

// Tool is a per-agent capability toggle, unique per (agent, tool name).
type Tool struct {
	ID             int64                  `json:"id" db:"id"`
	AgentID        int64                  `json:"agent_id" db:"agent_id"`
	ToolName       string                 `json:"tool_name" db:"tool_name"`
	Enabled        bool                   `json:"enabled" db:"enabled"`
	ProviderConfig map[string]interface{} `json:"provider_config,omitempty"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at" db:"updated_at"`
}
