//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/repository"
	"mobilemoney-subscription/internal/infra/worker"
	"mobilemoney-subscription/internal/usecase"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestActivationReplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger := newTestLogger()

	t.Run("replays the activation of a completed deposit", func(t *testing.T) {
		// --- Arrange ---
		deposits := newMemDepositRepo()
		subs := newMemSubRepo()
		completedAt := time.Now()
		_ = deposits.Save(ctx, repository.NoTX, &model.Deposit{
			DepositID:   "dep-1",
			UserID:      "user-1",
			PlanID:      "monthly",
			Amount:      4150,
			Status:      model.DepositStatusCompleted,
			CompletedAt: &completedAt,
		})

		pool := worker.NewPool(1, logger)
		pool.Start(ctx)
		defer pool.Stop()
		activation := usecase.NewActivationUseCase(subs, logger)
		replay := usecase.NewActivationReplay(pool, deposits, activation, logger)

		// --- Act ---
		if err := replay.Enqueue("dep-1"); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}

		// --- Assert ---
		waitFor(t, func() bool { return subs.UpsertCalls() == 1 })
		sub, err := subs.FindByUser(ctx, repository.NoTX, "user-1")
		if err != nil {
			t.Fatalf("expected a subscription after replay: %v", err)
		}
		if sub.PaymentReference != "dep-1" {
			t.Errorf("expected reference dep-1, got %s", sub.PaymentReference)
		}
	})

	t.Run("skips deposits that are not completed", func(t *testing.T) {
		// --- Arrange ---
		deposits := newMemDepositRepo()
		subs := newMemSubRepo()
		_ = deposits.Save(ctx, repository.NoTX, &model.Deposit{
			DepositID: "dep-2",
			UserID:    "user-2",
			PlanID:    "monthly",
			Status:    model.DepositStatusPending,
		})

		pool := worker.NewPool(1, logger)
		pool.Start(ctx)
		defer pool.Stop()
		activation := usecase.NewActivationUseCase(subs, logger)
		replay := usecase.NewActivationReplay(pool, deposits, activation, logger)

		// --- Act ---
		if err := replay.Enqueue("dep-2"); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}

		// --- Assert ---
		time.Sleep(50 * time.Millisecond)
		if subs.UpsertCalls() != 0 {
			t.Error("a non-completed deposit must not be replayed into an activation")
		}
	})
}
