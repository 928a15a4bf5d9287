package agent

type CreateAgentRequest struct {
	RestaurantID       int64  `json:"restaurant_id" binding:"required"`
	VoiceID            string `json:"voice_id"`
	Greeting           string `json:"greeting"`
	Style              string `json:"style"`
	MaxDurationMinutes int    `json:"max_duration_minutes"`
	VoicemailEnabled   bool   `json:"voicemail_enabled"`
}

// UpdateAgentRequest is a partial update: nil fields keep their current value
// locally and remotely.
type UpdateAgentRequest struct {
	VoiceID            *string `json:"voice_id"`
	Greeting           *string `json:"greeting"`
	Style              *string `json:"style"`
	MaxDurationMinutes *int    `json:"max_duration_minutes"`
	VoicemailEnabled   *bool   `json:"voicemail_enabled"`
	Status             *Status `json:"status"`
}

type AddDocumentRequest struct {
	Name    string `json:"name" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// SyncReport summarizes one knowledge-base sync run.
type SyncReport struct {
	Uploaded int `json:"uploaded"`
	Deleted  int `json:"deleted"`
	Skipped  int `json:"skipped"`
}

type TestCallRequest struct {
	ToNumber string `json:"to_number" binding:"required"`
}

type UpsertToolRequest struct {
	ToolName       string                 `json:"tool_name" binding:"required"`
	Enabled        bool                   `json:"enabled"`
	ProviderConfig map[string]interface{} `json:"provider_config"`
}
