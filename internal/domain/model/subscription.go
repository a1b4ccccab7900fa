package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPending   SubscriptionStatus = "pending"
)

// Subscription is the single entitlement row per user. A new activation from
// a different completed deposit overwrites plan, expiry and payment reference.
type Subscription struct {
	UserID           string
	Plan             PlanID
	Status           SubscriptionStatus
	StartedAt        time.Time
	ExpiresAt        time.Time
	PaymentReference string // DepositID of the deposit that activated it
	Amount           int64
}

// NewSubscription builds the row an activation upserts for userID.
func NewSubscription(userID string, plan PlanID, depositID string, amount int64, activatedAt time.Time) (*Subscription, error) {
	expires, err := ComputeExpiry(plan, activatedAt)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		UserID:           userID,
		Plan:             plan,
		Status:           SubscriptionStatusActive,
		StartedAt:        activatedAt,
		ExpiresAt:        expires,
		PaymentReference: depositID,
		Amount:           amount,
	}, nil
}
