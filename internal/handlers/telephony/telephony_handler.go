package telephony

import (
	"net/http"
	"strconv"

	"tablevoice-service/internal/middleware"
	"tablevoice-service/internal/pkg/response"
	telephonyService "tablevoice-service/internal/service/telephony"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SignatureValidator checks inbound webhook signatures. Satisfied by the
// Twilio client.
type SignatureValidator interface {
	ValidateSignature(url string, params map[string]string, signature string) bool
}

type TelephonyHandler struct {
	telService *telephonyService.TelephonyService
	validator  SignatureValidator
	appBaseURL string
	logger     *zap.Logger
}

func NewTelephonyHandler(svc *telephonyService.TelephonyService, validator SignatureValidator, appBaseURL string, logger *zap.Logger) *TelephonyHandler {
	return &TelephonyHandler{
		telService: svc,
		validator:  validator,
		appBaseURL: appBaseURL,
		logger:     logger,
	}
}

// SearchNumbers lists purchasable phone numbers for a restaurant.
func (h *TelephonyHandler) SearchNumbers(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	restaurantID, err := strconv.ParseInt(c.Query("restaurant_id"), 10, 64)
	if err != nil || restaurantID <= 0 {
		response.ValidationError(c, "invalid restaurant_id", err)
		return
	}
	areaCode, _ := strconv.Atoi(c.Query("area_code"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	numbers, err := h.telService.SearchNumbers(c.Request.Context(), identityID, restaurantID, c.Query("country"), areaCode, limit)
	if err != nil {
		response.FromError(c, "number search failed", err)
		return
	}

	response.Success(c, http.StatusOK, "available numbers", numbers)
}

type provisionRequest struct {
	AgentID     int64  `json:"agent_id" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// ProvisionNumber purchases a number and binds it to an agent.
func (h *TelephonyHandler) ProvisionNumber(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req provisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	a, err := h.telService.ProvisionNumber(c.Request.Context(), identityID, req.AgentID, req.PhoneNumber)
	if err != nil {
		response.FromError(c, "failed to provision number", err)
		return
	}

	response.Success(c, http.StatusCreated, "number provisioned", a)
}

// VoiceWebhook answers the telephony provider's inbound-call callback with
// TwiML. The X-Twilio-Signature header authenticates the request.
func (h *TelephonyHandler) VoiceWebhook(c *gin.Context) {
	agentID, err := strconv.ParseInt(c.Param("agentID"), 10, 64)
	if err != nil || agentID <= 0 {
		c.String(http.StatusBadRequest, "invalid agent id")
		return
	}

	if err := c.Request.ParseForm(); err != nil {
		c.String(http.StatusBadRequest, "malformed request")
		return
	}

	params := make(map[string]string, len(c.Request.PostForm))
	for key := range c.Request.PostForm {
		params[key] = c.Request.PostForm.Get(key)
	}

	webhookURL := h.appBaseURL + c.Request.URL.RequestURI()
	if !h.validator.ValidateSignature(webhookURL, params, c.GetHeader("X-Twilio-Signature")) {
		h.logger.Warn("rejected webhook with bad signature",
			zap.Int64("agent_id", agentID),
			zap.String("url", webhookURL),
		)
		c.String(http.StatusForbidden, "signature verification failed")
		return
	}

	doc, err := h.telService.InboundCallTwiML(c.Request.Context(), agentID)
	if err != nil {
		h.logger.Error("failed to build call response",
			zap.Int64("agent_id", agentID),
			zap.Error(err),
		)
		c.String(http.StatusInternalServerError, "call handling failed")
		return
	}

	c.Data(http.StatusOK, "text/xml", []byte(doc))
}
