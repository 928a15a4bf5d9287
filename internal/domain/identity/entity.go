package identity

import "time"

type SubscriptionTier string
type SubscriptionStatus string

const (
	TierFree    SubscriptionTier = "free"
	TierStarter SubscriptionTier = "starter"
	TierPro     SubscriptionTier = "pro"

	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// User represents a dashboard account.
type User struct {
	ID                 int64              `json:"id" db:"id"`
	Email              string             `json:"email" db:"email"`
	PasswordHash       string             `json:"-" db:"password_hash"`
	FullName           string             `json:"full_name" db:"full_name"`
	SubscriptionTier   SubscriptionTier   `json:"subscription_tier" db:"subscription_tier"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status" db:"subscription_status"`
	IsActive           bool               `json:"is_active" db:"is_active"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}
