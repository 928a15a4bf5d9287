package reservation

type CreateReservationRequest struct {
	CustomerName  string `json:"customer_name" binding:"required"`
	CustomerPhone string `json:"customer_phone" binding:"required"`
	CustomerEmail string `json:"customer_email"`
	Date          string `json:"date" binding:"required"` // YYYY-MM-DD
	Time          string `json:"time" binding:"required"` // HH:MM
	PartySize     int    `json:"party_size" binding:"required,min=1"`
	Source        Source `json:"source"`
	AgentID       *int64 `json:"agent_id"`
	Notes         string `json:"notes"`
}

type UpdateReservationRequest struct {
	CustomerName  *string `json:"customer_name"`
	CustomerPhone *string `json:"customer_phone"`
	CustomerEmail *string `json:"customer_email"`
	Date          *string `json:"date"`
	Time          *string `json:"time"`
	PartySize     *int    `json:"party_size"`
	Notes         *string `json:"notes"`
}

type ListFilters struct {
	DateFrom string `form:"date_from"`
	DateTo   string `form:"date_to"`
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

type ListResponse struct {
	Reservations []*Reservation `json:"reservations"`
	Total        int64          `json:"total"`
	Page         int            `json:"page"`
	PageSize     int            `json:"page_size"`
	TotalPages   int            `json:"total_pages"`
}

// AvailabilityRequest asks whether a party can be seated on a given date/time.
type AvailabilityRequest struct {
	Date      string `form:"date" binding:"required"`
	Time      string `form:"time" binding:"required"`
	PartySize int    `form:"party_size" binding:"required,min=1"`
}

type AvailabilityResponse struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}
