package telephony

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"tablevoice-service/internal/authz"
	"tablevoice-service/internal/domain/agent"
	"tablevoice-service/internal/domain/restaurant"
	"tablevoice-service/internal/integrations/twilio"
	xerrors "tablevoice-service/internal/pkg/errors"

	"go.uber.org/zap"
)

type AgentStore interface {
	FindByID(ctx context.Context, id int64) (*agent.Agent, error)
	Update(ctx context.Context, a *agent.Agent) error
}

type RestaurantStore interface {
	FindByID(ctx context.Context, id int64) (*restaurant.Restaurant, error)
}

// NumberProvider is the telephony surface. Satisfied by the Twilio client.
type NumberProvider interface {
	SearchNumbers(ctx context.Context, country string, areaCode int, limit int) ([]twilio.AvailableNumber, error)
	ProvisionNumber(ctx context.Context, phoneNumber, friendlyName, voiceURL string) (*twilio.ProvisionedNumber, error)
}

type TelephonyService struct {
	agents        AgentStore
	restaurants   RestaurantStore
	provider      NumberProvider
	authorizer    *authz.Authorizer
	appBaseURL    string
	voiceStreamWS string
	logger        *zap.Logger
}

func NewTelephonyService(
	agents AgentStore,
	restaurants RestaurantStore,
	provider NumberProvider,
	authorizer *authz.Authorizer,
	appBaseURL string,
	elevenLabsBaseURL string,
	logger *zap.Logger,
) *TelephonyService {
	return &TelephonyService{
		agents:        agents,
		restaurants:   restaurants,
		provider:      provider,
		authorizer:    authorizer,
		appBaseURL:    strings.TrimRight(appBaseURL, "/"),
		voiceStreamWS: streamEndpoint(elevenLabsBaseURL),
		logger:        logger,
	}
}

// SearchNumbers lists purchasable numbers for an agent's restaurant.
func (s *TelephonyService) SearchNumbers(ctx context.Context, userID, restaurantID int64, country string, areaCode, limit int) ([]twilio.AvailableNumber, error) {
	if _, err := s.authorizer.Authorize(ctx, userID, restaurantID, authz.PermAgentEdit); err != nil {
		return nil, err
	}
	if country == "" {
		country = "US"
	}
	return s.provider.SearchNumbers(ctx, country, areaCode, limit)
}

// ProvisionNumber purchases a number and binds it to the agent, pointing the
// number's voice webhook at this service.
func (s *TelephonyService) ProvisionNumber(ctx context.Context, userID, agentID int64, phoneNumber string) (*agent.Agent, error) {
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
	if a.PhoneNumber != nil {
		return nil, fmt.Errorf("%w: agent already has a phone number", xerrors.ErrConflict)
	}

	rest, err := s.restaurants.FindByID(ctx, a.RestaurantID)
	if err != nil {
		return nil, err
	}

	voiceURL := fmt.Sprintf("%s/api/v1/twilio/webhook/%d", s.appBaseURL, a.ID)
	provisioned, err := s.provider.ProvisionNumber(ctx, phoneNumber, rest.Name, voiceURL)
	if err != nil {
		return nil, err
	}

	a.PhoneNumber = &provisioned.PhoneNumber
	a.PhoneNumberSID = &provisioned.SID
	if err := s.agents.Update(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("phone number provisioned",
		zap.Int64("agent_id", a.ID),
		zap.String("phone_number", provisioned.PhoneNumber),
	)

	return a, nil
}

// InboundCallTwiML decides how an inbound call is answered: bridge into the
// agent's conversation stream when the agent is live, fall back to voicemail
// when enabled, otherwise apologize and hang up.
func (s *TelephonyService) InboundCallTwiML(ctx context.Context, agentID int64) (string, error) {
	a, err := s.agents.FindByID(ctx, agentID)
	if err != nil {
		return "", err
	}
	rest, err := s.restaurants.FindByID(ctx, a.RestaurantID)
	if err != nil {
		return "", err
	}

	live := a.Status == agent.StatusActive &&
		rest.Status == restaurant.StatusActive &&
		a.ExternalAgentID != nil

	if live {
		streamURL := fmt.Sprintf("%s?agent_id=%s", s.voiceStreamWS, url.QueryEscape(*a.ExternalAgentID))
		return twilio.BuildAgentCallTwiML(streamURL)
	}

	if a.VoicemailEnabled {
		return twilio.BuildVoicemailTwiML(rest.Name)
	}
	return twilio.BuildUnavailableTwiML(rest.Name)
}

// streamEndpoint derives the realtime conversation websocket from the
// provider's REST base URL.
func streamEndpoint(baseURL string) string {
	host := strings.TrimRight(baseURL, "/")
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	return "wss://" + host + "/v1/convai/conversation"
}
