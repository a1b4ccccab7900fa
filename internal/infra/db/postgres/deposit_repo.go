package postgres

import (
	"errors"
	"time"

	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"mobilemoney-subscription/internal/domain"
	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/repository"
)

var _ repository.DepositRepository = (*depositRepo)(nil)

type depositRepo struct{ pool *pgxpool.Pool }

func NewDepositRepo(pool *pgxpool.Pool) *depositRepo {
	return &depositRepo{pool: pool}
}

const depositColumns = `deposit_id, user_id, plan_id, amount, currency, phone_number, correspondent, provider, status, failure_reason, callback_received, created_at, updated_at, completed_at`

func (r *depositRepo) Save(ctx context.Context, tx repository.Tx, d *model.Deposit) error {
	const q = `
INSERT INTO deposits (
  deposit_id, user_id, plan_id, amount, currency, phone_number, correspondent, provider, status, failure_reason, callback_received, created_at, updated_at, completed_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
) ON CONFLICT (deposit_id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q, d.DepositID, d.UserID, d.PlanID, d.Amount, d.Currency, d.PhoneNumber, d.Correspondent, d.Provider, d.Status, d.FailureReason, d.CallbackReceived, d.CreatedAt, d.UpdatedAt, d.CompletedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *depositRepo) FindByID(ctx context.Context, tx repository.Tx, depositID string) (*model.Deposit, error) {
	q := `SELECT ` + depositColumns + ` FROM deposits WHERE deposit_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, depositID)
	if err != nil {
		return nil, err
	}

	d := &model.Deposit{}
	if err := row.Scan(&d.DepositID, &d.UserID, &d.PlanID, &d.Amount, &d.Currency, &d.PhoneNumber, &d.Correspondent, &d.Provider, &d.Status, &d.FailureReason, &d.CallbackReceived, &d.CreatedAt, &d.UpdatedAt, &d.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDepositNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return d, nil
}

// UpdateStatusIfNotTerminal is the single-row compare-and-set that resolves
// the poll/webhook race: the WHERE clause only matches non-terminal rows, so
// of two concurrent callers observing the same terminal outcome exactly one
// sees RowsAffected()==1.
func (r *depositRepo) UpdateStatusIfNotTerminal(
	ctx context.Context, tx repository.Tx, depositID string, status model.DepositStatus, failureReason *string, completedAt *time.Time,
) (bool, error) {
	const q = `
    UPDATE deposits
       SET status = $2,
           failure_reason = COALESCE($3, failure_reason),
           completed_at = COALESCE($4, completed_at),
           updated_at = NOW()
     WHERE deposit_id = $1
       AND status IN ('ACCEPTED','PENDING');`

	cmd, err := execSQL(ctx, r.pool, tx, q, depositID, string(status), failureReason, completedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *depositRepo) MarkCallbackReceived(ctx context.Context, tx repository.Tx, depositID string) error {
	const q = `UPDATE deposits SET callback_received=TRUE, updated_at=NOW() WHERE deposit_id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, depositID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *depositRepo) ListNonTerminalOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Deposit, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + depositColumns + ` FROM deposits WHERE status IN ('ACCEPTED','PENDING') AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, olderThan, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Deposit
	for rows.Next() {
		d := new(model.Deposit)
		if err := rows.Scan(&d.DepositID, &d.UserID, &d.PlanID, &d.Amount, &d.Currency, &d.PhoneNumber, &d.Correspondent, &d.Provider, &d.Status, &d.FailureReason, &d.CallbackReceived, &d.CreatedAt, &d.UpdatedAt, &d.CompletedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, d)
	}
	return out, nil
}
