//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"mobilemoney-subscription/internal/domain"
	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/repository"
	"mobilemoney-subscription/internal/usecase"
)

func TestActivationUseCase_Activate(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()

	t.Run("should upsert an active subscription with a deterministic expiry", func(t *testing.T) {
		// --- Arrange ---
		subs := newMemSubRepo()
		uc := usecase.NewActivationUseCase(subs, logger)
		activatedAt := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

		// --- Act ---
		sub, err := uc.Activate(ctx, repository.NoTX, "user-1", model.PlanMonthly, "dep-1", 4150, activatedAt)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if sub.Status != model.SubscriptionStatusActive {
			t.Errorf("expected active, got %s", sub.Status)
		}
		want := activatedAt.AddDate(0, 1, 0)
		if !sub.ExpiresAt.Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, sub.ExpiresAt)
		}
	})

	t.Run("re-activation overwrites expiry instead of stacking", func(t *testing.T) {
		// --- Arrange ---
		subs := newMemSubRepo()
		uc := usecase.NewActivationUseCase(subs, logger)
		first := time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)
		second := time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)

		// --- Act ---
		if _, err := uc.Activate(ctx, repository.NoTX, "user-1", model.PlanMonthly, "dep-1", 4150, first); err != nil {
			t.Fatalf("first activation failed: %v", err)
		}
		if _, err := uc.Activate(ctx, repository.NoTX, "user-1", model.PlanYearly, "dep-2", 41500, second); err != nil {
			t.Fatalf("second activation failed: %v", err)
		}

		// --- Assert ---
		sub, err := subs.FindByUser(ctx, repository.NoTX, "user-1")
		if err != nil {
			t.Fatalf("expected a subscription row: %v", err)
		}
		if sub.Plan != model.PlanYearly {
			t.Errorf("expected the later plan to win, got %s", sub.Plan)
		}
		if sub.PaymentReference != "dep-2" {
			t.Errorf("expected payment reference dep-2, got %s", sub.PaymentReference)
		}
		// Expiry is computed from the second activation time only; the
		// remainder of the first period is not added on top.
		want := second.AddDate(1, 0, 0)
		if !sub.ExpiresAt.Equal(want) {
			t.Errorf("expected expiry %v, got %v", want, sub.ExpiresAt)
		}
	})

	t.Run("should reject a plan without a purchasable duration", func(t *testing.T) {
		subs := newMemSubRepo()
		uc := usecase.NewActivationUseCase(subs, logger)

		_, err := uc.Activate(ctx, repository.NoTX, "user-1", model.PlanFree, "dep-1", 0, time.Now())
		if !errors.Is(err, domain.ErrUnknownPlan) {
			t.Fatalf("expected ErrUnknownPlan, got %v", err)
		}
		if subs.UpsertCalls() != 0 {
			t.Error("nothing may be upserted for an invalid plan")
		}
	})
}
