package agent

import (
	"context"
	"fmt"

	"tablevoice-service/internal/domain/agent"
	"tablevoice-service/internal/domain/reservation"
	xerrors "tablevoice-service/internal/pkg/errors"
	"tablevoice-service/internal/ws"

	"go.uber.org/zap"
)

// ProviderEvent is the decoded post-call webhook payload.
type ProviderEvent struct {
	Type            string        `json:"type"`
	AgentID         string        `json:"agent_id"`
	ConversationID  string        `json:"conversation_id"`
	DurationSeconds int64         `json:"duration_seconds"`
	Status          string        `json:"status"`
	ErrorMessage    string        `json:"error_message,omitempty"`
	Booking         *BookingEvent `json:"booking,omitempty"`
}

// BookingEvent is a reservation the agent took during the call, extracted by
// the provider's call analysis.
type BookingEvent struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	PartySize     int    `json:"party_size"`
	Notes         string `json:"notes,omitempty"`
}

// BookingRecorder persists reservations taken by an agent over the phone.
// Implemented by the reservation service.
type BookingRecorder interface {
	CreateFromAgent(ctx context.Context, restaurantID, agentID int64, req *reservation.CreateReservationRequest) (*reservation.Reservation, error)
}

// SetBookingRecorder wires the reservation side in after construction; the
// two services reference each other only through this narrow surface.
func (s *AgentService) SetBookingRecorder(r BookingRecorder) {
	s.bookings = r
}

// HandleProviderEvent processes a post-call webhook: bumps the agent's usage
// counters, records failures, persists any booking the agent took and pushes
// a dashboard event.
func (s *AgentService) HandleProviderEvent(ctx context.Context, event *ProviderEvent) error {
	if event.AgentID == "" {
		return fmt.Errorf("%w: event missing agent id", xerrors.ErrInvalidInput)
	}

	a, err := s.agents.FindByExternalID(ctx, event.AgentID)
	if err != nil {
		return err
	}

	switch event.Type {
	case "post_call_transcription", "post_call":
		if err := s.agents.RecordCallResult(ctx, a.ID, event.DurationSeconds); err != nil {
			return err
		}

		if event.Status == "error" && event.ErrorMessage != "" {
			if err := s.agents.SetLastError(ctx, a.ID, event.ErrorMessage); err != nil {
				return err
			}
		}

		if event.Booking != nil && s.bookings != nil {
			if err := s.recordBooking(ctx, a, event.Booking); err != nil {
				// The call already happened; a booking failure must not make
				// the provider retry the whole webhook.
				s.logger.Error("failed to record agent booking",
					zap.Int64("agent_id", a.ID),
					zap.Error(err),
				)
			}
		}

		s.hub.Publish(ws.NewEvent(ws.EventAgentCallCompleted, a.RestaurantID, map[string]interface{}{
			"agent_id":         a.ID,
			"conversation_id":  event.ConversationID,
			"duration_seconds": event.DurationSeconds,
			"status":           event.Status,
		}))
		return nil

	default:
		s.logger.Debug("ignoring provider event", zap.String("type", event.Type))
		return nil
	}
}

func (s *AgentService) recordBooking(ctx context.Context, a *agent.Agent, booking *BookingEvent) error {
	req := &reservation.CreateReservationRequest{
		CustomerName:  booking.CustomerName,
		CustomerPhone: booking.CustomerPhone,
		CustomerEmail: booking.CustomerEmail,
		Date:          booking.Date,
		Time:          booking.Time,
		PartySize:     booking.PartySize,
		Source:        reservation.SourcePhoneAgent,
		Notes:         booking.Notes,
	}

	_, err := s.bookings.CreateFromAgent(ctx, a.RestaurantID, a.ID, req)
	return err
}
