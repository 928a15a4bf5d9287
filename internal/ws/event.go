package ws

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventConnected          EventType = "connected"
	EventPing               EventType = "ping"
	EventPong               EventType = "pong"
	EventError              EventType = "error"
	EventReservationCreated EventType = "reservation.created"
	EventReservationUpdated EventType = "reservation.updated"
	EventReservationStatus  EventType = "reservation.status_changed"
	EventAgentCallCompleted EventType = "agent.call_completed"
)

// Event is the wire format pushed to dashboard sockets.
type Event struct {
	Type         EventType   `json:"type"`
	RestaurantID int64       `json:"restaurant_id,omitempty"`
	Data         interface{} `json:"data,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

func NewEvent(eventType EventType, restaurantID int64, data interface{}) *Event {
	return &Event{
		Type:         eventType,
		RestaurantID: restaurantID,
		Data:         data,
		Timestamp:    time.Now().UTC(),
	}
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEvent decodes an inbound client frame.
func ParseEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
