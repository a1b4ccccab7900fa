// File: internal/usecase/replay.go
package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/repository"
	"mobilemoney-subscription/internal/infra/worker"
)

// Compile-time check
var _ ActivationReplayer = (*ActivationReplay)(nil)

// ActivationReplay retries subscription upserts that failed after a deposit
// was already marked COMPLETED. Replay is safe: the subscription upsert is
// idempotent for a given deposit, and only COMPLETED deposits are replayed.
type ActivationReplay struct {
	pool       *worker.Pool
	deposits   repository.DepositRepository
	activation ActivationUseCase
	log        *zerolog.Logger
}

func NewActivationReplay(pool *worker.Pool, deposits repository.DepositRepository, activation ActivationUseCase, logger *zerolog.Logger) *ActivationReplay {
	return &ActivationReplay{pool: pool, deposits: deposits, activation: activation, log: logger}
}

func (r *ActivationReplay) Enqueue(depositID string) error {
	return r.pool.Submit(func(ctx context.Context) error {
		d, err := r.deposits.FindByID(ctx, repository.NoTX, depositID)
		if err != nil {
			return fmt.Errorf("replay lookup %s: %w", depositID, err)
		}
		if d.Status != model.DepositStatusCompleted || d.CompletedAt == nil {
			// Nothing to replay; the gap closed or never existed.
			return nil
		}
		if _, err := r.activation.Activate(ctx, repository.NoTX, d.UserID, model.PlanID(d.PlanID), d.DepositID, d.Amount, *d.CompletedAt); err != nil {
			return fmt.Errorf("replay activate %s: %w", depositID, err)
		}
		r.log.Info().Str("deposit_id", depositID).Msg("activation gap replayed")
		return nil
	})
}
