package model

import (
	"strings"
	"time"

	"mobilemoney-subscription/internal/domain"
)

// DepositStatus is the canonical status every provider vocabulary is mapped onto.
type DepositStatus string

const (
	DepositStatusAccepted  DepositStatus = "ACCEPTED"  // provider accepted the request
	DepositStatusPending   DepositStatus = "PENDING"   // awaiting payer confirmation
	DepositStatusCompleted DepositStatus = "COMPLETED" // funds collected
	DepositStatusFailed    DepositStatus = "FAILED"    // rejected, cancelled or expired
)

// Terminal reports whether no further transition is accepted from s.
func (s DepositStatus) Terminal() bool {
	return s == DepositStatusCompleted || s == DepositStatusFailed
}

// Deposit records one payment attempt with a mobile-money provider.
// The DepositID doubles as the idempotency token: generated once at initiation
// (or assigned by the provider) and never reused. Rows are never deleted.
type Deposit struct {
	DepositID     string // idempotency token, primary identity
	UserID        string
	PlanID        string // plan this payment is buying
	Amount        int64  // minor units, to avoid float errors
	Currency      string // e.g. "XAF"
	PhoneNumber   string // normalized MSISDN
	Correspondent string // operator+country+currency tuple, e.g. "MTN_MOMO_CMR"
	Provider      string // gateway name, e.g. "pawapay"

	Status           DepositStatus
	FailureReason    *string
	CallbackReceived bool // set once the webhook path touched this row

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time // set exactly once, on first terminal observation
}

// ReconcileDecision is the outcome of comparing a stored status against a
// freshly observed one.
type ReconcileDecision struct {
	NewStatus      DepositStatus
	Changed        bool
	ShouldActivate bool
}

// Reconcile decides whether an observed provider status should be persisted
// and whether it should trigger subscription activation. It is pure; the
// caller must apply the decision under a conditional (compare-and-set) update
// so that two racing observers of the same terminal outcome produce exactly
// one activation.
func Reconcile(stored, observed DepositStatus) ReconcileDecision {
	if stored.Terminal() {
		// Monotonic: terminal rows never move again.
		return ReconcileDecision{NewStatus: stored}
	}
	if observed == stored {
		return ReconcileDecision{NewStatus: stored}
	}
	return ReconcileDecision{
		NewStatus:      observed,
		Changed:        true,
		ShouldActivate: observed == DepositStatusCompleted,
	}
}

// NormalizePhone strips formatting characters and a leading "+" from an
// MSISDN. Validation happens before any network call.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimPrefix(strings.TrimSpace(raw), "+") {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
			// formatting noise
		default:
			return "", domain.ErrInvalidPhoneNumber
		}
	}
	phone := b.String()
	if len(phone) < 9 {
		return "", domain.ErrInvalidPhoneNumber
	}
	return phone, nil
}
