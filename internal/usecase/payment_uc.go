// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"mobilemoney-subscription/internal/domain"
	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/adapter"
	"mobilemoney-subscription/internal/domain/ports/repository"
	"mobilemoney-subscription/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

// InitiateArgs is a validated-at-the-edge deposit initiation request.
type InitiateArgs struct {
	UserID        string
	PlanID        string
	Amount        int64 // optional; must match the plan price when set
	Currency      string
	PhoneNumber   string
	Correspondent string
}

// RateLimiter gates repeated initiation attempts per user.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// ActivationReplayer re-runs activations that failed after a won COMPLETED
// transition (reconciliation gaps).
type ActivationReplayer interface {
	Enqueue(depositID string) error
}

// CorrespondentCache keeps the operator catalog warm between provider
// discovery calls.
type CorrespondentCache interface {
	Get(ctx context.Context) ([]adapter.Correspondent, bool)
	Put(ctx context.Context, cs []adapter.Correspondent)
}

type PaymentUseCase interface {
	// Initiate validates the request, initiates the deposit with the provider
	// (fail closed) and persists the new Deposit row. Returns the deposit and
	// an optional USSD code for providers that confirm synchronously.
	Initiate(ctx context.Context, args InitiateArgs) (*model.Deposit, string, error)
	// CheckStatus re-queries the provider for a non-terminal deposit and runs
	// the reconcile pipeline. Terminal deposits are returned as stored.
	CheckStatus(ctx context.Context, depositID string) (*model.Deposit, error)
	// CheckStored reads the stored deposit without touching the provider.
	CheckStored(ctx context.Context, depositID string) (*model.Deposit, error)
	// HandleCallback applies a provider-pushed confirmation through the same
	// reconcile pipeline. Activation failures are logged and replayed, never
	// surfaced: the receiver must still acknowledge the provider.
	HandleCallback(ctx context.Context, ev *adapter.CallbackEvent) (*model.Deposit, error)
	// ListCorrespondents returns the supported operator catalog.
	ListCorrespondents(ctx context.Context) ([]adapter.Correspondent, error)
	// GatewayFor resolves the gateway handling a stored deposit.
	GatewayFor(d *model.Deposit) (adapter.MobileMoneyGateway, bool)
}

type paymentUC struct {
	deposits   repository.DepositRepository
	activation ActivationUseCase
	tm         repository.TransactionManager
	gateways   map[string]adapter.MobileMoneyGateway
	defaultGW  adapter.MobileMoneyGateway
	limiter    RateLimiter
	rateLimit  int
	replayer   ActivationReplayer
	catalog    CorrespondentCache
	log        *zerolog.Logger
}

func NewPaymentUseCase(
	deposits repository.DepositRepository,
	activation ActivationUseCase,
	tm repository.TransactionManager,
	defaultGW adapter.MobileMoneyGateway,
	extraGWs []adapter.MobileMoneyGateway,
	limiter RateLimiter,
	rateLimit int,
	replayer ActivationReplayer,
	catalog CorrespondentCache,
	logger *zerolog.Logger,
) *paymentUC {
	gws := map[string]adapter.MobileMoneyGateway{defaultGW.Name(): defaultGW}
	for _, g := range extraGWs {
		gws[g.Name()] = g
	}
	return &paymentUC{
		deposits:   deposits,
		activation: activation,
		tm:         tm,
		gateways:   gws,
		defaultGW:  defaultGW,
		limiter:    limiter,
		rateLimit:  rateLimit,
		replayer:   replayer,
		catalog:    catalog,
		log:        logger,
	}
}

func (u *paymentUC) Initiate(ctx context.Context, args InitiateArgs) (*model.Deposit, string, error) {
	// Validation comes before any network call.
	phone, err := model.NormalizePhone(args.PhoneNumber)
	if err != nil {
		return nil, "", err
	}
	plan, err := model.ParsePlan(args.PlanID)
	if err != nil {
		return nil, "", err
	}
	price := model.DefaultPlans[plan].PriceXAF
	if price <= 0 {
		return nil, "", domain.ErrUnknownPlan
	}
	if args.Amount != 0 && args.Amount != price {
		return nil, "", domain.ErrInvalidArgument
	}
	if args.UserID == "" || args.Correspondent == "" {
		return nil, "", domain.ErrInvalidArgument
	}
	currency := args.Currency
	if currency == "" {
		currency = "XAF"
	}

	if u.limiter != nil {
		ok, err := u.limiter.Allow(ctx, "rate_limit:initiate:"+args.UserID, u.rateLimit, time.Hour)
		if err != nil {
			// Redis trouble must not block payments.
			u.log.Warn().Err(err).Msg("rate limiter unavailable, allowing")
		} else if !ok {
			return nil, "", domain.ErrRateLimited
		}
	}

	res, err := u.defaultGW.InitiateDeposit(ctx, adapter.InitiateRequest{
		DepositID:     uuid.NewString(),
		UserID:        args.UserID,
		Amount:        price,
		Currency:      currency,
		PhoneNumber:   phone,
		Correspondent: args.Correspondent,
		Description:   "Subscription " + string(plan),
	})
	if err != nil {
		// Fail closed: no Deposit row on provider error or timeout.
		return nil, "", err
	}

	now := time.Now()
	d := &model.Deposit{
		DepositID:     res.DepositID,
		UserID:        args.UserID,
		PlanID:        string(plan),
		Amount:        price,
		Currency:      currency,
		PhoneNumber:   phone,
		Correspondent: args.Correspondent,
		Provider:      u.defaultGW.Name(),
		Status:        res.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := u.deposits.Save(ctx, repository.NoTX, d); err != nil {
		return nil, "", err
	}
	metrics.IncDeposit(string(d.Status))
	u.log.Info().
		Str("deposit_id", d.DepositID).
		Str("user_id", d.UserID).
		Str("provider", d.Provider).
		Str("correspondent", d.Correspondent).
		Int64("amount", d.Amount).
		Msg("deposit initiated")
	return d, res.USSDCode, nil
}

func (u *paymentUC) CheckStatus(ctx context.Context, depositID string) (*model.Deposit, error) {
	d, err := u.deposits.FindByID(ctx, repository.NoTX, depositID)
	if err != nil {
		return nil, err
	}
	if d.Status.Terminal() {
		return d, nil
	}

	gw, ok := u.GatewayFor(d)
	if !ok {
		return nil, domain.ErrInvalidArgument
	}
	observed, reason, err := gw.QueryStatus(ctx, d.DepositID)
	if err != nil {
		// Transient provider trouble: the poll loop retries next interval.
		return nil, err
	}
	return u.applyObservation(ctx, d, observed, reason, false)
}

func (u *paymentUC) CheckStored(ctx context.Context, depositID string) (*model.Deposit, error) {
	return u.deposits.FindByID(ctx, repository.NoTX, depositID)
}

func (u *paymentUC) HandleCallback(ctx context.Context, ev *adapter.CallbackEvent) (*model.Deposit, error) {
	// A webhook never creates a deposit; it must have been initiated first.
	d, err := u.deposits.FindByID(ctx, repository.NoTX, ev.DepositID)
	if err != nil {
		return nil, err
	}
	return u.applyObservation(ctx, d, ev.Status, ev.FailureReason, true)
}

// applyObservation is the single reconcile pipeline shared by the poll path,
// the webhook path and the background reconciler. The terminal transition is
// a compare-and-set on the deposit row: of two racing observers exactly one
// wins, and only the winner activates.
func (u *paymentUC) applyObservation(ctx context.Context, d *model.Deposit, observed model.DepositStatus, failureReason *string, fromCallback bool) (*model.Deposit, error) {
	decision := model.Reconcile(d.Status, observed)
	if !decision.Changed {
		if fromCallback {
			// Still record that the provider reached us.
			if err := u.deposits.MarkCallbackReceived(ctx, repository.NoTX, d.DepositID); err != nil {
				u.log.Warn().Err(err).Str("deposit_id", d.DepositID).Msg("mark callback received")
			}
			d.CallbackReceived = true
			metrics.IncCallback("duplicate")
		}
		return d, nil
	}

	var completedAt *time.Time
	if decision.NewStatus.Terminal() {
		now := time.Now()
		completedAt = &now
	}

	var won bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		won, err = u.deposits.UpdateStatusIfNotTerminal(ctx, tx, d.DepositID, decision.NewStatus, failureReason, completedAt)
		if err != nil {
			return err
		}
		if fromCallback {
			return u.deposits.MarkCallbackReceived(ctx, tx, d.DepositID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !won {
		// Lost the race: someone else moved the row first. Re-read the truth.
		metrics.IncCallback("duplicate")
		return u.deposits.FindByID(ctx, repository.NoTX, d.DepositID)
	}

	d.Status = decision.NewStatus
	d.FailureReason = failureReason
	d.CompletedAt = completedAt
	if fromCallback {
		d.CallbackReceived = true
		metrics.IncCallback("applied")
	}
	metrics.IncDeposit(string(d.Status))

	if decision.ShouldActivate {
		metrics.AddDepositRevenue(d.Currency, d.Amount)
		// Activation runs after the status commit on purpose: a failed upsert
		// leaves the deposit COMPLETED and becomes a reconciliation gap to
		// replay, never a rolled-back payment.
		if _, err := u.activation.Activate(ctx, repository.NoTX, d.UserID, model.PlanID(d.PlanID), d.DepositID, d.Amount, *completedAt); err != nil {
			u.log.Error().Err(err).
				Str("deposit_id", d.DepositID).
				Str("user_id", d.UserID).
				Msg("activation failed after completed deposit, scheduling replay")
			if u.replayer != nil {
				if qerr := u.replayer.Enqueue(d.DepositID); qerr != nil {
					u.log.Error().Err(qerr).Str("deposit_id", d.DepositID).Msg("activation replay enqueue failed")
				} else {
					metrics.IncActivation("replayed")
				}
			}
		}
	}
	return d, nil
}

func (u *paymentUC) ListCorrespondents(ctx context.Context) ([]adapter.Correspondent, error) {
	if u.catalog != nil {
		if cs, ok := u.catalog.Get(ctx); ok {
			return cs, nil
		}
	}
	cs, err := u.defaultGW.ListCorrespondents(ctx)
	if err != nil {
		return nil, err
	}
	if u.catalog != nil {
		u.catalog.Put(ctx, cs)
	}
	return cs, nil
}

func (u *paymentUC) GatewayFor(d *model.Deposit) (adapter.MobileMoneyGateway, bool) {
	gw, ok := u.gateways[d.Provider]
	return gw, ok
}
