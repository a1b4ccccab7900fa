package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mobilemoney-subscription/internal/domain"
	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (
  user_id, plan, status, started_at, expires_at, payment_reference, amount
) VALUES (
  $1,$2,$3,$4,$5,$6,$7
) ON CONFLICT (user_id) DO UPDATE SET
  plan=$2, status=$3, started_at=$4, expires_at=$5, payment_reference=$6, amount=$7;`

	_, err := execSQL(ctx, r.pool, tx, q, s.UserID, s.Plan, s.Status, s.StartedAt, s.ExpiresAt, s.PaymentReference, s.Amount)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	const q = `SELECT user_id, plan, status, started_at, expires_at, payment_reference, amount FROM subscriptions WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}

	s := &model.Subscription{}
	if err := row.Scan(&s.UserID, &s.Plan, &s.Status, &s.StartedAt, &s.ExpiresAt, &s.PaymentReference, &s.Amount); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}
