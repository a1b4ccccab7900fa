package repository

import (
	"context"
	"time"

	"mobilemoney-subscription/internal/domain/model"
)

// DepositRepository is the port for the transaction store. Deposits are
// append/update-only: there is no delete.
type DepositRepository interface {
	Save(ctx context.Context, qx Tx, d *model.Deposit) error
	FindByID(ctx context.Context, qx Tx, depositID string) (*model.Deposit, error)

	// UpdateStatusIfNotTerminal atomically moves a deposit to status only when
	// the stored status is still non-terminal. Returns true when this caller
	// won the transition. completedAt is written only on the winning terminal
	// update, which makes it set-exactly-once by construction.
	UpdateStatusIfNotTerminal(ctx context.Context, qx Tx, depositID string, status model.DepositStatus, failureReason *string, completedAt *time.Time) (bool, error)

	// MarkCallbackReceived flags that the webhook path touched the row.
	MarkCallbackReceived(ctx context.Context, qx Tx, depositID string) error

	// ListNonTerminalOlderThan feeds the background reconciler.
	ListNonTerminalOlderThan(ctx context.Context, qx Tx, olderThan time.Time, limit int) ([]*model.Deposit, error)
}
