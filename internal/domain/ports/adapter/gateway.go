package adapter

import (
	"context"

	"mobilemoney-subscription/internal/domain/model"
)

// InitiateRequest carries everything a provider needs to start a collection.
// Validation (phone, plan, amount) happens before an adapter ever sees it.
type InitiateRequest struct {
	DepositID     string // pre-generated idempotency token; providers that assign their own return it in InitiateResult
	UserID        string
	Amount        int64
	Currency      string
	PhoneNumber   string
	Correspondent string
	Description   string
}

// InitiateResult is the provider's answer to a deposit initiation.
type InitiateResult struct {
	DepositID string // final idempotency token (ours or provider-assigned)
	Status    model.DepositStatus
	USSDCode  string // set by providers that confirm via a sync USSD prompt
}

// Correspondent identifies one (operator, country, currency) payment channel.
type Correspondent struct {
	ID           string `json:"correspondent"`
	Country      string `json:"country"`
	Currency     string `json:"currency"`
	OperatorName string `json:"operatorName"`
}

// CallbackEvent is a provider-pushed confirmation, normalized.
type CallbackEvent struct {
	DepositID     string
	Status        model.DepositStatus
	FailureReason *string
}

// MobileMoneyGateway is the hex port for mobile-money providers.
//
// InitiateDeposit must fail closed: if the outbound call errors or times out
// the caller gets an error and no Deposit row is created. Status mapping must
// be explicit and total; an unmapped provider status is an error, never
// silently pending.
type MobileMoneyGateway interface {
	Name() string

	InitiateDeposit(ctx context.Context, req InitiateRequest) (*InitiateResult, error)

	// QueryStatus asks the provider for the current status of a deposit and
	// maps it onto the canonical enum.
	QueryStatus(ctx context.Context, depositID string) (model.DepositStatus, *string, error)

	// ParseCallback validates and normalizes a raw webhook body.
	ParseCallback(body []byte) (*CallbackEvent, error)

	// ListCorrespondents returns the supported operator catalog. Adapters fall
	// back to a hardcoded default when provider discovery fails; initiation is
	// never blocked on this call.
	ListCorrespondents(ctx context.Context) ([]Correspondent, error)
}
