package restaurant

import (
	"fmt"
	"time"

	"tablevoice-service/internal/authz"
	xerrors "tablevoice-service/internal/pkg/errors"
)

type OwnerKind string
type Status string

const (
	OwnerPersonal     OwnerKind = "personal"
	OwnerOrganization OwnerKind = "organization"

	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

// Ownership is the tagged union for who owns a restaurant: exactly one of a
// personal account or an organization. The invariant is structural, validated
// on every create/update.
type Ownership struct {
	Kind           OwnerKind `json:"kind"`
	UserID         int64     `json:"user_id,omitempty"`
	OrganizationID int64     `json:"organization_id,omitempty"`
}

func PersonalOwnership(userID int64) Ownership {
	return Ownership{Kind: OwnerPersonal, UserID: userID}
}

func OrganizationOwnership(orgID int64) Ownership {
	return Ownership{Kind: OwnerOrganization, OrganizationID: orgID}
}

// Validate enforces that the kind matches exactly one populated side.
func (o Ownership) Validate() error {
	switch o.Kind {
	case OwnerPersonal:
		if o.UserID <= 0 || o.OrganizationID != 0 {
			return fmt.Errorf("%w: personal ownership requires a user id and no organization id", xerrors.ErrInvalidInput)
		}
	case OwnerOrganization:
		if o.OrganizationID <= 0 || o.UserID != 0 {
			return fmt.Errorf("%w: organization ownership requires an organization id and no user id", xerrors.ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown ownership kind %q", xerrors.ErrInvalidInput, o.Kind)
	}
	return nil
}

// DayHours is the open/close window for one weekday. Weekday follows
// time.Weekday numbering (0 = Sunday).
type DayHours struct {
	Weekday int    `json:"weekday"`
	Open    string `json:"open"`
	Close   string `json:"close"`
	Closed  bool   `json:"closed"`
}

// Settings are the operational booking parameters for a restaurant.
type Settings struct {
	SeatingCapacity      int `json:"seating_capacity"`
	TurnoverMinutes      int `json:"turnover_minutes"`
	BookingBufferMinutes int `json:"booking_buffer_minutes"`
	MinPartySize         int `json:"min_party_size"`
	MaxPartySize         int `json:"max_party_size"`
	AdvanceBookingDays   int `json:"advance_booking_days"`
}

// Restaurant is the central tenant-scoped entity.
type Restaurant struct {
	ID        int64      `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Ownership Ownership  `json:"ownership"`
	Phone     string     `json:"phone" db:"phone"`
	Email     string     `json:"email" db:"email"`
	Address   string     `json:"address" db:"address"`
	City      string     `json:"city" db:"city"`
	Country   string     `json:"country" db:"country"`
	Timezone  string     `json:"timezone" db:"timezone"`
	Hours     []DayHours `json:"hours"`
	Settings  Settings   `json:"settings"`
	Status    Status     `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// Access grants an organization member a role on one restaurant. The
// permission list must always equal the canonical mapping for the role; the
// repair procedure rewrites records that drifted.
type Access struct {
	ID             int64                `json:"id" db:"id"`
	UserID         int64                `json:"user_id" db:"user_id"`
	RestaurantID   int64                `json:"restaurant_id" db:"restaurant_id"`
	OrganizationID int64                `json:"organization_id" db:"organization_id"`
	Role           authz.RestaurantRole `json:"role" db:"role"`
	Permissions    []string             `json:"permissions" db:"permissions"`
	CreatedAt      time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at" db:"updated_at"`
}
