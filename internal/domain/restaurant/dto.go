package restaurant

import "tablevoice-service/internal/authz"

type CreateRestaurantRequest struct {
	Name           string     `json:"name" binding:"required"`
	OrganizationID int64      `json:"organization_id"` // zero means personal ownership
	Phone          string     `json:"phone"`
	Email          string     `json:"email"`
	Address        string     `json:"address"`
	City           string     `json:"city"`
	Country        string     `json:"country"`
	Timezone       string     `json:"timezone"`
	Hours          []DayHours `json:"hours"`
	Settings       *Settings  `json:"settings"`
}

type UpdateRestaurantRequest struct {
	Name     *string    `json:"name"`
	Phone    *string    `json:"phone"`
	Email    *string    `json:"email"`
	Address  *string    `json:"address"`
	City     *string    `json:"city"`
	Country  *string    `json:"country"`
	Timezone *string    `json:"timezone"`
	Hours    []DayHours `json:"hours"`
	Settings *Settings  `json:"settings"`
	Status   *Status    `json:"status"`
}

type GrantAccessRequest struct {
	UserID int64                `json:"user_id" binding:"required"`
	Role   authz.RestaurantRole `json:"role" binding:"required"`
}

type UpdateAccessRequest struct {
	Role authz.RestaurantRole `json:"role" binding:"required"`
}

// RepairReport summarizes one run of the access-permission repair procedure.
type RepairReport struct {
	Scanned  int `json:"scanned"`
	Repaired int `json:"repaired"`
}
