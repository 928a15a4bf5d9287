package agent

import (
	"fmt"
	"strings"

	"tablevoice-service/internal/domain/agent"
	"tablevoice-service/internal/integrations/elevenlabs"
)

// MergeProviderConfig builds the provider payload for an agent. When remote is
// non-nil its fields we do not manage locally, currently the tool bindings,
// are carried over unchanged so a patch never strips them.
func MergeProviderConfig(remote *elevenlabs.AgentConfig, a *agent.Agent, restaurantName string) *elevenlabs.AgentConfig {
	cfg := &elevenlabs.AgentConfig{
		Name:               fmt.Sprintf("%s reservations", restaurantName),
		FirstMessage:       a.Greeting,
		SystemPrompt:       buildSystemPrompt(restaurantName, a.Style),
		MaxDurationSeconds: a.MaxDurationMinutes * 60,
	}
	if a.VoiceID != nil {
		cfg.VoiceID = *a.VoiceID
	}

	if remote != nil {
		cfg.ToolIDs = remote.ToolIDs
		if cfg.VoiceID == "" {
			cfg.VoiceID = remote.VoiceID
		}
	}

	return cfg
}

func buildSystemPrompt(restaurantName, style string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the phone host for %s. ", restaurantName)
	b.WriteString("You take, change and cancel table reservations. ")
	b.WriteString("Always confirm the date, time, party size and a contact phone number before booking. ")
	b.WriteString("Read the 4-digit confirmation code back to the caller at the end. ")
	if style != "" {
		fmt.Fprintf(&b, "Tone of voice: %s.", style)
	}
	return strings.TrimSpace(b.String())
}
