//go:build !integration

package web_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"mobilemoney-subscription/internal/domain"
	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/adapter"
	"mobilemoney-subscription/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

const testJWTSecret = "test-jwt-secret"

func bearerFor(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

// MockPaymentUC lets each handler test script the use case behavior.
type MockPaymentUC struct {
	InitiateFunc           func(ctx context.Context, args usecase.InitiateArgs) (*model.Deposit, string, error)
	CheckStatusFunc        func(ctx context.Context, depositID string) (*model.Deposit, error)
	CheckStoredFunc        func(ctx context.Context, depositID string) (*model.Deposit, error)
	HandleCallbackFunc     func(ctx context.Context, ev *adapter.CallbackEvent) (*model.Deposit, error)
	ListCorrespondentsFunc func(ctx context.Context) ([]adapter.Correspondent, error)
	GatewayForFunc         func(d *model.Deposit) (adapter.MobileMoneyGateway, bool)
}

var _ usecase.PaymentUseCase = (*MockPaymentUC)(nil)

func (m *MockPaymentUC) Initiate(ctx context.Context, args usecase.InitiateArgs) (*model.Deposit, string, error) {
	if m.InitiateFunc != nil {
		return m.InitiateFunc(ctx, args)
	}
	return &model.Deposit{DepositID: "dep-1", UserID: args.UserID, Status: model.DepositStatusAccepted}, "", nil
}

func (m *MockPaymentUC) CheckStatus(ctx context.Context, depositID string) (*model.Deposit, error) {
	if m.CheckStatusFunc != nil {
		return m.CheckStatusFunc(ctx, depositID)
	}
	return nil, domain.ErrDepositNotFound
}

func (m *MockPaymentUC) CheckStored(ctx context.Context, depositID string) (*model.Deposit, error) {
	if m.CheckStoredFunc != nil {
		return m.CheckStoredFunc(ctx, depositID)
	}
	return nil, domain.ErrDepositNotFound
}

func (m *MockPaymentUC) HandleCallback(ctx context.Context, ev *adapter.CallbackEvent) (*model.Deposit, error) {
	if m.HandleCallbackFunc != nil {
		return m.HandleCallbackFunc(ctx, ev)
	}
	return nil, domain.ErrDepositNotFound
}

func (m *MockPaymentUC) ListCorrespondents(ctx context.Context) ([]adapter.Correspondent, error) {
	if m.ListCorrespondentsFunc != nil {
		return m.ListCorrespondentsFunc(ctx)
	}
	return []adapter.Correspondent{{ID: "MTN_MOMO_CMR", Country: "CMR", Currency: "XAF", OperatorName: "MTN Mobile Money"}}, nil
}

func (m *MockPaymentUC) GatewayFor(d *model.Deposit) (adapter.MobileMoneyGateway, bool) {
	if m.GatewayForFunc != nil {
		return m.GatewayForFunc(d)
	}
	return &callbackGateway{}, true
}

// callbackGateway is the minimal gateway the webhook path needs.
type callbackGateway struct {
	ParseCallbackFunc func(body []byte) (*adapter.CallbackEvent, error)
}

var _ adapter.MobileMoneyGateway = (*callbackGateway)(nil)

func (g *callbackGateway) Name() string { return "pawapay" }

func (g *callbackGateway) InitiateDeposit(ctx context.Context, req adapter.InitiateRequest) (*adapter.InitiateResult, error) {
	return nil, domain.ErrOperationFailed
}

func (g *callbackGateway) QueryStatus(ctx context.Context, depositID string) (model.DepositStatus, *string, error) {
	return "", nil, domain.ErrOperationFailed
}

func (g *callbackGateway) ParseCallback(body []byte) (*adapter.CallbackEvent, error) {
	if g.ParseCallbackFunc != nil {
		return g.ParseCallbackFunc(body)
	}
	return &adapter.CallbackEvent{DepositID: "dep-1", Status: model.DepositStatusCompleted}, nil
}

func (g *callbackGateway) ListCorrespondents(ctx context.Context) ([]adapter.Correspondent, error) {
	return nil, nil
}
