package agent

import (
	"net/http"
	"strconv"

	"tablevoice-service/internal/domain/agent"
	"tablevoice-service/internal/middleware"
	"tablevoice-service/internal/pkg/response"
	agentService "tablevoice-service/internal/service/agent"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AgentHandler struct {
	agentService *agentService.AgentService
	logger       *zap.Logger
}

func NewAgentHandler(svc *agentService.AgentService, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{
		agentService: svc,
		logger:       logger,
	}
}

// Create provisions a voice agent for a restaurant.
func (h *AgentHandler) Create(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)

	var req agent.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	a, err := h.agentService.Create(c.Request.Context(), identityID, &req)
	if err != nil {
		response.FromError(c, "failed to create agent", err)
		return
	}

	response.Success(c, http.StatusCreated, "agent created", a)
}

// ListByRestaurant lists a restaurant's agents.
func (h *AgentHandler) ListByRestaurant(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	restaurantID, ok := pathID(c, "restaurantID")
	if !ok {
		return
	}

	agents, err := h.agentService.List(c.Request.Context(), identityID, restaurantID)
	if err != nil {
		response.FromError(c, "failed to list agents", err)
		return
	}

	response.Success(c, http.StatusOK, "agents", agents)
}

// Get returns one agent.
func (h *AgentHandler) Get(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	agentID, ok := pathID(c, "agentID")
	if !ok {
		return
	}

	a, err := h.agentService.Get(c.Request.Context(), identityID, agentID)
	if err != nil {
		response.FromError(c, "failed to load agent", err)
		return
	}

	response.Success(c, http.StatusOK, "agent", a)
}

// Update applies a partial update and pushes it to the provider.
func (h *AgentHandler) Update(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	agentID, ok := pathID(c, "agentID")
	if !ok {
		return
	}

	var req agent.UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	a, err := h.agentService.Update(c.Request.Context(), identityID, agentID, &req)
	if err != nil {
		response.FromError(c, "failed to update agent", err)
		return
	}

	response.Success(c, http.StatusOK, "agent updated", a)
}

// Delete tears the agent down.
func (h *AgentHandler) Delete(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	agentID, ok := pathID(c, "agentID")
	if !ok {
		return
	}

	if err := h.agentService.Delete(c.Request.Context(), identityID, agentID); err != nil {
		response.FromError(c, "failed to delete agent", err)
		return
	}

	response.Success(c, http.StatusOK, "agent deleted", nil)
}

// AddDocument attaches a knowledge-base document.
func (h *AgentHandler) AddDocument(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	agentID, ok := pathID(c, "agentID")
	if !ok {
		return
	}

	var req agent.AddDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	a, err := h.agentService.AddDocument(c.Request.Context(), identityID, agentID, &req)
	if err != nil {
		response.FromError(c, "failed to add document", err)
		return
	}

	response.Success(c, http.StatusCreated, "document added", a)
}

// RemoveDocument marks a document for removal.
func (h *AgentHandler) RemoveDocument(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	agentID, ok := pathID(c, "agentID")
	if !ok {
		return
	}
	documentID := c.Param("documentID")
	if documentID == "" {
		response.ValidationError(c, "invalid documentID", nil)
		return
	}

	a, err := h.agentService.RemoveDocument(c.Request.Context(), identityID, agentID, documentID)
	if err != nil {
		response.FromError(c, "failed to remove document", err)
		return
	}

	response.Success(c, http.StatusOK, "document removed", a)
}

// SyncKnowledgeBase reconciles documents against the provider.
func (h *AgentHandler) SyncKnowledgeBase(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	agentID, ok := pathID(c, "agentID")
	if !ok {
		return
	}

	report, err := h.agentService.SyncKnowledgeBase(c.Request.Context(), identityID, agentID)
	if err != nil {
		response.FromError(c, "knowledge base sync failed", err)
		return
	}

	response.Success(c, http.StatusOK, "knowledge base synced", report)
}

// TestCall places an outbound test call.
func (h *AgentHandler) TestCall(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	agentID, ok := pathID(c, "agentID")
	if !ok {
		return
	}

	var req agent.TestCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	callID, err := h.agentService.TestCall(c.Request.Context(), identityID, agentID, &req)
	if err != nil {
		response.FromError(c, "failed to start test call", err)
		return
	}

	response.Success(c, http.StatusOK, "test call started", gin.H{"call_id": callID})
}

// UpsertTool toggles a capability on the agent.
func (h *AgentHandler) UpsertTool(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	agentID, ok := pathID(c, "agentID")
	if !ok {
		return
	}

	var req agent.UpsertToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	tool, err := h.agentService.UpsertTool(c.Request.Context(), identityID, agentID, &req)
	if err != nil {
		response.FromError(c, "failed to save tool", err)
		return
	}

	response.Success(c, http.StatusOK, "tool saved", tool)
}

// ListTools lists an agent's capability toggles.
func (h *AgentHandler) ListTools(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	agentID, ok := pathID(c, "agentID")
	if !ok {
		return
	}

	tools, err := h.agentService.ListTools(c.Request.Context(), identityID, agentID)
	if err != nil {
		response.FromError(c, "failed to list tools", err)
		return
	}

	response.Success(c, http.StatusOK, "tools", tools)
}

// DeleteTool removes a capability toggle.
func (h *AgentHandler) DeleteTool(c *gin.Context) {
	identityID := middleware.MustGetIdentityID(c)
	agentID, ok := pathID(c, "agentID")
	if !ok {
		return
	}
	toolName := c.Param("toolName")
	if toolName == "" {
		response.ValidationError(c, "invalid toolName", nil)
		return
	}

	if err := h.agentService.DeleteTool(c.Request.Context(), identityID, agentID, toolName); err != nil {
		response.FromError(c, "failed to delete tool", err)
		return
	}

	response.Success(c, http.StatusOK, "tool deleted", nil)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ValidationError(c, "invalid "+name, err)
		return 0, false
	}
	return id, true
}
