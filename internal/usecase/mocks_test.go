//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mobilemoney-subscription/internal/domain"
	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/adapter"
	"mobilemoney-subscription/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// -----------------------------
// In-memory deposit repository
// -----------------------------

// memDepositRepo is a small in-memory implementation used by unit tests. Its
// UpdateStatusIfNotTerminal carries the same compare-and-set semantics as the
// Postgres implementation, so race tests against it are meaningful.
type memDepositRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Deposit

	SaveFunc                      func(ctx context.Context, qx repository.Tx, d *model.Deposit) error
	UpdateStatusIfNotTerminalFunc func(ctx context.Context, qx repository.Tx, depositID string, status model.DepositStatus, failureReason *string, completedAt *time.Time) (bool, error)
}

var _ repository.DepositRepository = (*memDepositRepo)(nil)

func newMemDepositRepo() *memDepositRepo {
	return &memDepositRepo{store: make(map[string]*model.Deposit)}
}

func (m *memDepositRepo) Save(ctx context.Context, qx repository.Tx, d *model.Deposit) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, qx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[d.DepositID]; exists {
		// Idempotent like ON CONFLICT DO NOTHING.
		return nil
	}
	cp := *d
	m.store[d.DepositID] = &cp
	return nil
}

func (m *memDepositRepo) FindByID(ctx context.Context, qx repository.Tx, depositID string) (*model.Deposit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.store[depositID]
	if !ok {
		return nil, domain.ErrDepositNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memDepositRepo) UpdateStatusIfNotTerminal(ctx context.Context, qx repository.Tx, depositID string, status model.DepositStatus, failureReason *string, completedAt *time.Time) (bool, error) {
	if m.UpdateStatusIfNotTerminalFunc != nil {
		return m.UpdateStatusIfNotTerminalFunc(ctx, qx, depositID, status, failureReason, completedAt)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[depositID]
	if !ok {
		return false, domain.ErrDepositNotFound
	}
	if d.Status.Terminal() {
		return false, nil
	}
	d.Status = status
	if failureReason != nil {
		d.FailureReason = failureReason
	}
	if completedAt != nil {
		d.CompletedAt = completedAt
	}
	d.UpdatedAt = time.Now()
	return true, nil
}

func (m *memDepositRepo) MarkCallbackReceived(ctx context.Context, qx repository.Tx, depositID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.store[depositID]
	if !ok {
		return domain.ErrDepositNotFound
	}
	d.CallbackReceived = true
	return nil
}

func (m *memDepositRepo) ListNonTerminalOlderThan(ctx context.Context, qx repository.Tx, olderThan time.Time, limit int) ([]*model.Deposit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Deposit
	for _, d := range m.store {
		if !d.Status.Terminal() && d.CreatedAt.Before(olderThan) {
			cp := *d
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// -----------------------------
// In-memory subscription repository
// -----------------------------

type memSubRepo struct {
	mu    sync.RWMutex
	subs  map[string]*model.Subscription
	calls int

	UpsertFunc func(ctx context.Context, qx repository.Tx, sub *model.Subscription) error
}

var _ repository.SubscriptionRepository = (*memSubRepo)(nil)

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{subs: make(map[string]*model.Subscription)}
}

func (m *memSubRepo) Upsert(ctx context.Context, qx repository.Tx, sub *model.Subscription) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, qx, sub)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	cp := *sub
	m.subs[sub.UserID] = &cp
	return nil
}

func (m *memSubRepo) FindByUser(ctx context.Context, qx repository.Tx, userID string) (*model.Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) UpsertCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// -----------------------------
// Mock gateway
// -----------------------------

type MockGateway struct {
	mu sync.Mutex

	InitiateDepositFunc func(ctx context.Context, req adapter.InitiateRequest) (*adapter.InitiateResult, error)
	QueryStatusFunc     func(ctx context.Context, depositID string) (model.DepositStatus, *string, error)
	ParseCallbackFunc   func(body []byte) (*adapter.CallbackEvent, error)

	Calls struct {
		Initiate int
		Query    int
	}
}

var _ adapter.MobileMoneyGateway = (*MockGateway)(nil)

func (m *MockGateway) Name() string { return "pawapay" }

func (m *MockGateway) InitiateDeposit(ctx context.Context, req adapter.InitiateRequest) (*adapter.InitiateResult, error) {
	m.mu.Lock()
	m.Calls.Initiate++
	m.mu.Unlock()
	if m.InitiateDepositFunc != nil {
		return m.InitiateDepositFunc(ctx, req)
	}
	return &adapter.InitiateResult{DepositID: req.DepositID, Status: model.DepositStatusAccepted}, nil
}

func (m *MockGateway) QueryStatus(ctx context.Context, depositID string) (model.DepositStatus, *string, error) {
	m.mu.Lock()
	m.Calls.Query++
	m.mu.Unlock()
	if m.QueryStatusFunc != nil {
		return m.QueryStatusFunc(ctx, depositID)
	}
	return model.DepositStatusPending, nil, nil
}

func (m *MockGateway) ParseCallback(body []byte) (*adapter.CallbackEvent, error) {
	if m.ParseCallbackFunc != nil {
		return m.ParseCallbackFunc(body)
	}
	return nil, domain.ErrInvalidArgument
}

func (m *MockGateway) ListCorrespondents(ctx context.Context) ([]adapter.Correspondent, error) {
	return []adapter.Correspondent{{ID: "MTN_MOMO_CMR", Country: "CMR", Currency: "XAF", OperatorName: "MTN Mobile Money"}}, nil
}

func (m *MockGateway) InitiateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls.Initiate
}

// -----------------------------
// Mock transaction manager
// -----------------------------

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, nil)
}

// -----------------------------
// Mock replayer and rate limiter
// -----------------------------

type MockReplayer struct {
	mu       sync.Mutex
	Enqueued []string
}

func (m *MockReplayer) Enqueue(depositID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Enqueued = append(m.Enqueued, depositID)
	return nil
}

func (m *MockReplayer) EnqueuedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Enqueued...)
}

type MockRateLimiter struct {
	AllowFunc func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, limit, window)
	}
	return true, nil
}
