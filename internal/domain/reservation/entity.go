package reservation

import "time"

type Status string
type Source string

const (
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"

	SourcePhoneAgent Source = "phone_agent"
	SourceManual     Source = "manual"
	SourceOnline     Source = "online"
)

// HistoryEntry is one line of the append-only action log kept on every
// reservation.
type HistoryEntry struct {
	Action string    `json:"action"`
	Actor  string    `json:"actor"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// Reservation is a booking at one restaurant, optionally taken by an agent.
// Code is the human-facing 4-digit confirmation number, unique only within the
// owning restaurant.
type Reservation struct {
	ID            int64          `json:"id" db:"id"`
	RestaurantID  int64          `json:"restaurant_id" db:"restaurant_id"`
	AgentID       *int64         `json:"agent_id,omitempty" db:"agent_id"`
	Code          string         `json:"code" db:"code"`
	CustomerName  string         `json:"customer_name" db:"customer_name"`
	CustomerPhone string         `json:"customer_phone" db:"customer_phone"`
	CustomerEmail *string        `json:"customer_email,omitempty" db:"customer_email"`
	Date          string         `json:"date" db:"date"` // YYYY-MM-DD
	Time          string         `json:"time" db:"time"` // HH:MM, restaurant-local
	PartySize     int            `json:"party_size" db:"party_size"`
	Status        Status         `json:"status" db:"status"`
	Source        Source         `json:"source" db:"source"`
	Notes         *string        `json:"notes,omitempty" db:"notes"`
	History       []HistoryEntry `json:"history"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" db:"updated_at"`
}

// AppendHistory records an action on the reservation log. The log is
// append-only; existing entries are never rewritten.
func (r *Reservation) AppendHistory(action, actor, note string) {
	r.History = append(r.History, HistoryEntry{
		Action: action,
		Actor:  actor,
		Note:   note,
		At:     time.Now().UTC(),
	})
}
