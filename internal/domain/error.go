package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound               = errors.New("entity not found")
	ErrDepositNotFound        = errors.New("deposit not found")
	ErrInvalidArgument        = errors.New("invalid argument")
	ErrInvalidPhoneNumber     = errors.New("invalid phone number")
	ErrUnknownPlan            = errors.New("unknown subscription plan")
	ErrUnmappedProviderStatus = errors.New("unmapped provider status")
	ErrGatewayUnavailable     = errors.New("payment provider unavailable")
	ErrRateLimited            = errors.New("too many payment attempts")
	ErrInvalidSignature       = errors.New("invalid webhook signature")
	ErrInvalidExecContext     = errors.New("invalid execution context")
	ErrOperationFailed        = errors.New("operation failed")
	ErrReadDatabaseRow        = errors.New("failed to read database row")
)
