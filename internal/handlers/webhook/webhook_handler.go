package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	agentService "tablevoice-service/internal/service/agent"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignatureVerifier checks the voice provider's webhook HMAC header.
// Satisfied by the ElevenLabs client.
type SignatureVerifier interface {
	VerifyWebhookSignature(body []byte, header string) error
}

type WebhookHandler struct {
	agentService *agentService.AgentService
	verifier     SignatureVerifier
	logger       *zap.Logger
}

func NewWebhookHandler(svc *agentService.AgentService, verifier SignatureVerifier, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		agentService: svc,
		verifier:     verifier,
		logger:       logger,
	}
}

// VoiceProviderEvent ingests post-call webhooks from the voice provider.
// Returns 200 even for events we ignore so the provider stops retrying.
func (h *WebhookHandler) VoiceProviderEvent(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.String(http.StatusBadRequest, "unreadable body")
		return
	}

	if err := h.verifier.VerifyWebhookSignature(body, c.GetHeader("ElevenLabs-Signature")); err != nil {
		h.logger.Warn("rejected provider webhook", zap.Error(err))
		c.String(http.StatusUnauthorized, "signature verification failed")
		return
	}

	var event agentService.ProviderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.String(http.StatusBadRequest, "malformed event")
		return
	}

	if err := h.agentService.HandleProviderEvent(c.Request.Context(), &event); err != nil {
		h.logger.Error("failed to process provider event",
			zap.String("type", event.Type),
			zap.String("agent_id", event.AgentID),
			zap.Error(err),
		)
		c.String(http.StatusInternalServerError, "event processing failed")
		return
	}

	c.Status(http.StatusOK)
}
