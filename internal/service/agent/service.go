package agent

import (
	"context"
	"fmt"
	"time"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/domain/agent"
	"tablevoice-service/internal/domain/restaurant"
	"tablevoice-service/internal/integrations/elevenlabs"
	xerrors "tablevoice-service/internal/pkg/errors"
	"tablevoice-service/internal/ws"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

type AgentStore interface {
	Create(ctx context.Context, a *agent.Agent) error
	FindByID(ctx context.Context, id int64) (*agent.Agent, error)
	FindByExternalID(ctx context.Context, externalID string) (*agent.Agent, error)
	ListByRestaurant(ctx context.Context, restaurantID int64) ([]*agent.Agent, error)
	Update(ctx context.Context, a *agent.Agent) error
	RecordCallResult(ctx context.Context, id int64, durationSeconds int64) error
	SetLastError(ctx context.Context, id int64, message string) error
	Delete(ctx context.Context, id int64) error
}

type ToolStore interface {
	Upsert(ctx context.Context, t *agent.Tool) error
	ListByAgent(ctx context.Context, agentID int64) ([]*agent.Tool, error)
	Delete(ctx context.Context, agentID int64, toolName string) error
}

type RestaurantStore interface {
	FindByID(ctx context.Context, id int64) (*restaurant.Restaurant, error)
}

// Provider is the voice-agent platform surface. Satisfied by the ElevenLabs
// client.
type Provider interface {
	CreateAgent(ctx context.Context, cfg *elevenlabs.AgentConfig) (string, error)
	GetAgent(ctx context.Context, agentID string) (*elevenlabs.AgentConfig, error)
	UpdateAgent(ctx context.Context, agentID string, cfg *elevenlabs.AgentConfig) error
	DeleteAgent(ctx context.Context, agentID string) error
	UploadKnowledgeBaseFile(ctx context.Context, name, content string) (string, error)
	DeleteKnowledgeBaseFile(ctx context.Context, fileID string) error
	StartOutboundCall(ctx context.Context, agentID, fromNumber, toNumber string) (string, error)
}

// NumberReleaser returns provisioned phone numbers to the telephony provider.
type NumberReleaser interface {
	ReleaseNumber(ctx context.Context, sid string) error
}

type AgentService struct {
	agents      AgentStore
	tools       ToolStore
	restaurants RestaurantStore
	provider    Provider
	telephony   NumberReleaser
	authorizer  *authz.Authorizer
	hub         *ws.Hub
	bookings    BookingRecorder
	logger      *zap.Logger
}

func NewAgentService(
	agents AgentStore,
	tools ToolStore,
	restaurants RestaurantStore,
	provider Provider,
	telephony NumberReleaser,
	authorizer *authz.Authorizer,
	hub *ws.Hub,
	logger *zap.Logger,
) *AgentService {
	return &AgentService{
		agents:      agents,
		tools:       tools,
		restaurants: restaurants,
		provider:    provider,
		telephony:   telephony,
		authorizer:  authorizer,
		hub:         hub,
		logger:      logger,
	}
}

// Create provisions a remote agent for the restaurant and stores its local
// record. The agent starts in configuring and flips to active once the remote
// resource exists.
func (s *AgentService) Create(ctx context.Context, userID int64, req *agent.CreateAgentRequest) (*agent.Agent, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, req.RestaurantID, authz.PermAgentEdit); err != nil {
		return nil, err
	}

	rest, err := s.restaurants.FindByID(ctx, req.RestaurantID)
	if err != nil {
		return nil, err
	}

	a := &agent.Agent{
		RestaurantID:       req.RestaurantID,
		Greeting:           req.Greeting,
		Style:              req.Style,
		MaxDurationMinutes: req.MaxDurationMinutes,
		VoicemailEnabled:   req.VoicemailEnabled,
		Status:             agent.StatusConfiguring,
	}
	if req.VoiceID != "" {
		a.VoiceID = &req.VoiceID
	}
	if a.Greeting == "" {
		a.Greeting = fmt.Sprintf("Thank you for calling %s. How can I help you today?", rest.Name)
	}
	if a.MaxDurationMinutes <= 0 {
		a.MaxDurationMinutes = 10
	}

	if err := s.agents.Create(ctx, a); err != nil {
		return nil, err
	}

	externalID, err := s.provider.CreateAgent(ctx, MergeProviderConfig(nil, a, rest.Name))
	if err != nil {
		if setErr := s.agents.SetLastError(ctx, a.ID, err.Error()); setErr != nil {
			s.logger.Error("failed to record agent error", zap.Error(setErr))
		}
		return nil, err
	}

	a.ExternalAgentID = &externalID
	a.Status = agent.StatusActive
	if err := s.agents.Update(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("agent created",
		zap.Int64("agent_id", a.ID),
		zap.Int64("restaurant_id", a.RestaurantID),
		zap.String("external_agent_id", externalID),
	)

	return a, nil
}

// Get returns one agent to a caller with view permission on its restaurant.
func (s *AgentService) Get(ctx context.Context, userID, agentID int64) (*agent.Agent, error) {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, a.RestaurantID, authz.PermAgentView); err != nil {
		return nil, err
	}
	return a, nil
}

// List lists a restaurant's agents.
func (s *AgentService) List(ctx context.Context, userID, restaurantID int64) ([]*agent.Agent, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, restaurantID, authz.PermAgentView); err != nil {
		return nil, err
	}
	return s.agents.ListByRestaurant(ctx, restaurantID)
}

// Update applies a partial update locally and pushes the merged configuration
// to the provider. The remote agent is read first so that fields we do not
// manage, notably tool bindings, survive the patch.
func (s *AgentService) Update(ctx context.Context, userID, agentID int64, req *agent.UpdateAgentRequest) (*agent.Agent, error) {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, a.RestaurantID, authz.PermAgentEdit); err != nil {
		return nil, err
	}

	applyUpdate(a, req)

	if a.ExternalAgentID != nil {
		rest, err := s.restaurants.FindByID(ctx, a.RestaurantID)
		if err != nil {
			return nil, err
		}

		remote, err := s.provider.GetAgent(ctx, *a.ExternalAgentID)
		if err != nil {
			return nil, err
		}

		if err := s.provider.UpdateAgent(ctx, *a.ExternalAgentID, MergeProviderConfig(remote, a, rest.Name)); err != nil {
			if setErr := s.agents.SetLastError(ctx, a.ID, err.Error()); setErr != nil {
				s.logger.Error("failed to record agent error", zap.Error(setErr))
			}
			return nil, err
		}
	}

	if err := s.agents.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// AddDocument attaches a knowledge-base document in the pending state. It
// reaches the provider on the next sync.
func (s *AgentService) AddDocument(ctx context.Context, userID, agentID int64, req *agent.AddDocumentRequest) (*agent.Agent, error) {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, a.RestaurantID, authz.PermAgentEdit); err != nil {
		return nil, err
	}

	a.Documents = append(a.Documents, agent.Document{
		ID:         ulid.Make().String(),
		Name:       req.Name,
		Content:    req.Content,
		Status:     agent.DocumentPending,
		UploadedAt: time.Now().UTC(),
	})

	if err := s.agents.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// RemoveDocument marks a document as removed. The provider-side file is
// deleted on the next sync.
func (s *AgentService) RemoveDocument(ctx context.Context, userID, agentID int64, documentID string) (*agent.Agent, error) {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, a.RestaurantID, authz.PermAgentEdit); err != nil {
		return nil, err
	}

	found := false
	for i := range a.Documents {
		if a.Documents[i].ID == documentID {
			a.Documents[i].Status = agent.DocumentRemoved
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: document not found", xerrors.ErrNotFound)
	}

	if err := s.agents.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// SyncKnowledgeBase reconciles local documents against the provider: pending
// ones are uploaded, removed ones deleted remotely and dropped locally. A
// remote 404 on delete means the file is already gone and counts as deleted.
func (s *AgentService) SyncKnowledgeBase(ctx context.Context, userID, agentID int64) (*agent.SyncReport, error) {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, a.RestaurantID, authz.PermAgentEdit); err != nil {
		return nil, err
	}
	if a.ExternalAgentID == nil {
		return nil, fmt.Errorf("%w: agent has no provider resource yet", xerrors.ErrConflict)
	}

	report := &agent.SyncReport{}
	kept := a.Documents[:0]

	for i := range a.Documents {
		doc := a.Documents[i]
		switch doc.Status {
		case agent.DocumentPending:
			externalID, err := s.provider.UploadKnowledgeBaseFile(ctx, doc.Name, doc.Content)
			if err != nil {
				s.logger.Error("knowledge-base upload failed",
					zap.Int64("agent_id", a.ID),
					zap.String("document", doc.Name),
					zap.Error(err),
				)
				report.Skipped++
				kept = append(kept, doc)
				continue
			}
			doc.ExternalID = externalID
			doc.Status = agent.DocumentSynced
			report.Uploaded++
			kept = append(kept, doc)

		case agent.DocumentRemoved:
			if doc.ExternalID != "" {
				if err := s.provider.DeleteKnowledgeBaseFile(ctx, doc.ExternalID); err != nil {
					report.Skipped++
					kept = append(kept, doc)
					continue
				}
			}
			report.Deleted++

		default:
			kept = append(kept, doc)
		}
	}

	a.Documents = kept
	if err := s.agents.Update(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("knowledge base synced",
		zap.Int64("agent_id", a.ID),
		zap.Int("uploaded", report.Uploaded),
		zap.Int("deleted", report.Deleted),
		zap.Int("skipped", report.Skipped),
	)

	return report, nil
}

// TestCall places an outbound call from the agent to the given number.
func (s *AgentService) TestCall(ctx context.Context, userID, agentID int64, req *agent.TestCallRequest) (string, error) {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return "", err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, a.RestaurantID, authz.PermAgentEdit); err != nil {
		return "", err
	}
	if a.ExternalAgentID == nil {
		return "", fmt.Errorf("%w: agent has no provider resource yet", xerrors.ErrConflict)
	}
	if a.PhoneNumber == nil {
		return "", fmt.Errorf("%w: agent has no phone number provisioned", xerrors.ErrConflict)
	}

	callID, err := s.provider.StartOutboundCall(ctx, *a.ExternalAgentID, *a.PhoneNumber, req.ToNumber)
	if err != nil {
		return "", err
	}

	s.logger.Info("test call started",
		zap.Int64("agent_id", a.ID),
		zap.String("call_id", callID),
	)
	return callID, nil
}

// UpsertTool toggles a capability on the agent.
func (s *AgentService) UpsertTool(ctx context.Context, userID, agentID int64, req *agent.UpsertToolRequest) (*agent.Tool, error) {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, a.RestaurantID, authz.PermAgentEdit); err != nil {
		return nil, err
	}

	tool := &agent.Tool{
		AgentID:        agentID,
		ToolName:       req.ToolName,
		Enabled:        req.Enabled,
		ProviderConfig: req.ProviderConfig,
	}
	if err := s.tools.Upsert(ctx, tool); err != nil {
		return nil, err
	}
	return tool, nil
}

// ListTools lists an agent's capability toggles.
func (s *AgentService) ListTools(ctx context.Context, userID, agentID int64) ([]*agent.Tool, error) {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, a.RestaurantID, authz.PermAgentView); err != nil {
		return nil, err
	}
	return s.tools.ListByAgent(ctx, agentID)
}

// DeleteTool removes a capability toggle.
func (s *AgentService) DeleteTool(ctx context.Context, userID, agentID int64, toolName string) error {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, a.RestaurantID, authz.PermAgentEdit); err != nil {
		return err
	}
	return s.tools.Delete(ctx, agentID, toolName)
}

// Delete tears the agent down: releases its phone number, deletes the remote
// resource and finally the local record. Provider-side failures other than
// not-found abort the delete so nothing leaks.
func (s *AgentService) Delete(ctx context.Context, userID, agentID int64) error {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return err
	}
	if _, err := s.authorizer.Authorize(ctx, userID, a.RestaurantID, authz.PermAgentEdit); err != nil {
		return err
	}
	return s.teardown(ctx, a)
}

// PurgeRestaurantAgents removes every agent of a restaurant. Used by the
// restaurant cascade delete; authorization happened at the restaurant level.
func (s *AgentService) PurgeRestaurantAgents(ctx context.Context, restaurantID int64) (int, error) {
	agents, err := s.agents.ListByRestaurant(ctx, restaurantID)
	if err != nil {
		return 0, err
	}

	for _, a := range agents {
		if err := s.teardown(ctx, a); err != nil {
			return 0, err
		}
	}
	return len(agents), nil
}

func (s *AgentService) teardown(ctx context.Context, a *agent.Agent) error {
	if a.PhoneNumberSID != nil {
		if err := s.telephony.ReleaseNumber(ctx, *a.PhoneNumberSID); err != nil && !xerrors.Is(err, xerrors.ErrNotFound) {
			return fmt.Errorf("failed to release phone number: %w", err)
		}
	}

	if a.ExternalAgentID != nil {
		if err := s.provider.DeleteAgent(ctx, *a.ExternalAgentID); err != nil {
			return fmt.Errorf("failed to delete provider agent: %w", err)
		}
	}

	if err := s.agents.Delete(ctx, a.ID); err != nil {
		return err
	}

	s.logger.Info("agent deleted",
		zap.Int64("agent_id", a.ID),
		zap.Int64("restaurant_id", a.RestaurantID),
	)
	return nil
}

func applyUpdate(a *agent.Agent, req *agent.UpdateAgentRequest) {
	if req.VoiceID != nil {
		a.VoiceID = req.VoiceID
	}
	if req.Greeting != nil {
		a.Greeting = *req.Greeting
	}
	if req.Style != nil {
		a.Style = *req.Style
	}
	if req.MaxDurationMinutes != nil {
		a.MaxDurationMinutes = *req.MaxDurationMinutes
	}
	if req.VoicemailEnabled != nil {
		a.VoicemailEnabled = *req.VoicemailEnabled
	}
	if req.Status != nil {
		a.Status = *req.Status
	}
}
