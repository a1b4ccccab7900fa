// File: internal/usecase/activation_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/repository"
	"mobilemoney-subscription/internal/infra/metrics"
)

// Compile-time check
var _ ActivationUseCase = (*activationUC)(nil)

// ActivationUseCase turns a completed deposit into an entitlement. It must
// only run when the reconcile pipeline reports a won COMPLETED transition;
// that guard, not this type, is what prevents double activation.
type ActivationUseCase interface {
	Activate(ctx context.Context, qx repository.Tx, userID string, plan model.PlanID, depositID string, amount int64, activatedAt time.Time) (*model.Subscription, error)
}

type activationUC struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
}

func NewActivationUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger) *activationUC {
	return &activationUC{subs: subs, log: logger}
}

// Activate computes the deterministic expiry for the plan and upserts the
// single subscription row for the user. Re-activation from a different
// deposit overwrites expiry relative to the new activation time; durations
// never stack.
func (u *activationUC) Activate(ctx context.Context, qx repository.Tx, userID string, plan model.PlanID, depositID string, amount int64, activatedAt time.Time) (*model.Subscription, error) {
	sub, err := model.NewSubscription(userID, plan, depositID, amount, activatedAt)
	if err != nil {
		return nil, err
	}
	if err := u.subs.Upsert(ctx, qx, sub); err != nil {
		metrics.IncActivation("failed")
		return nil, err
	}
	metrics.IncActivation("ok")
	u.log.Info().
		Str("user_id", userID).
		Str("deposit_id", depositID).
		Str("plan", string(plan)).
		Time("expires_at", sub.ExpiresAt).
		Msg("subscription activated")
	return sub, nil
}
