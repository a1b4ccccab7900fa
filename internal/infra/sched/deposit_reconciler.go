package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"mobilemoney-subscription/internal/domain/ports/repository"
	"mobilemoney-subscription/internal/usecase"
)

// DepositReconciler periodically scans for stale non-terminal deposits and
// tries to finalize them by re-querying the provider through the same
// reconcile pipeline as the client poll. This covers lost webhooks, closed
// dialogs and crashes mid-confirmation.
type DepositReconciler struct {
	uc         usecase.PaymentUseCase
	deposits   repository.DepositRepository
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a non-terminal deposit must be to retry
	log        *zerolog.Logger
}

func NewDepositReconciler(uc usecase.PaymentUseCase, deposits repository.DepositRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *DepositReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &DepositReconciler{uc: uc, deposits: deposits, interval: interval, staleAfter: staleAfter, log: logger}
}

func (w *DepositReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *DepositReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.deposits.ListNonTerminalOlderThan(ctx, repository.NoTX, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("deposit-reconciler: list stale deposits")
		return
	}
	for _, d := range stale {
		res, err := w.uc.CheckStatus(ctx, d.DepositID)
		if err != nil {
			w.log.Warn().Err(err).Str("deposit_id", d.DepositID).Msg("deposit-reconciler: check status")
			continue
		}
		if res.Status != d.Status {
			w.log.Info().
				Str("deposit_id", d.DepositID).
				Str("from", string(d.Status)).
				Str("to", string(res.Status)).
				Msg("deposit-reconciler: reconciled")
		}
	}
}
