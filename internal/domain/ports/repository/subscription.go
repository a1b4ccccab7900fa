package repository

import (
	"context"

	"mobilemoney-subscription/internal/domain/model"
)

// SubscriptionRepository is the port for user entitlements, one row per user.
type SubscriptionRepository interface {
	// Upsert inserts the subscription or overwrites the existing row for the
	// same user (plan, expiry and payment reference are replaced, not stacked).
	Upsert(ctx context.Context, qx Tx, sub *model.Subscription) error
	FindByUser(ctx context.Context, qx Tx, userID string) (*model.Subscription, error)
}
