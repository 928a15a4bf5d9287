package agent

import (
	"testing"

	"tablevoice-service/internal/domain/agent"
	"tablevoice-service/internal/integrations/elevenlabs"

	"github.com/stretchr/testify/assert"
)

func TestMergeProviderConfig(t *testing.T) {
	voice := "voice-abc"
	base := &agent.Agent{
		Greeting:           "Thanks for calling!",
		Style:              "warm",
		MaxDurationMinutes: 10,
		VoiceID:            &voice,
	}

	t.Run("fresh config without remote", func(t *testing.T) {
		cfg := MergeProviderConfig(nil, base, "Trattoria Roma")

		assert.Equal(t, "Trattoria Roma reservations", cfg.Name)
		assert.Equal(t, "Thanks for calling!", cfg.FirstMessage)
		assert.Equal(t, 600, cfg.MaxDurationSeconds)
		assert.Equal(t, "voice-abc", cfg.VoiceID)
		assert.Empty(t, cfg.ToolIDs)
		assert.Contains(t, cfg.SystemPrompt, "Trattoria Roma")
		assert.Contains(t, cfg.SystemPrompt, "4-digit confirmation code")
		assert.Contains(t, cfg.SystemPrompt, "Tone of voice: warm.")
	})

	t.Run("remote tool bindings survive a patch", func(t *testing.T) {
		remote := &elevenlabs.AgentConfig{
			ToolIDs: []string{"tool-1", "tool-2"},
			VoiceID: "voice-remote",
		}

		cfg := MergeProviderConfig(remote, base, "Trattoria Roma")
		assert.Equal(t, []string{"tool-1", "tool-2"}, cfg.ToolIDs)
		assert.Equal(t, "voice-abc", cfg.VoiceID, "local voice wins when set")
	})

	t.Run("remote voice used as fallback", func(t *testing.T) {
		noVoice := *base
		noVoice.VoiceID = nil
		remote := &elevenlabs.AgentConfig{VoiceID: "voice-remote"}

		cfg := MergeProviderConfig(remote, &noVoice, "Trattoria Roma")
		assert.Equal(t, "voice-remote", cfg.VoiceID)
	})

	t.Run("style omitted from prompt when empty", func(t *testing.T) {
		plain := *base
		plain.Style = ""

		cfg := MergeProviderConfig(nil, &plain, "Trattoria Roma")
		assert.NotContains(t, cfg.SystemPrompt, "Tone of voice")
	})
}
