// Package poller implements the client-side confirmation loop: a cooperative
// polling state machine that follows one deposit from initiation to a
// terminal outcome or cancellation.
package poller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mobilemoney-subscription/internal/domain/model"
	"mobilemoney-subscription/internal/domain/ports/adapter"
)

type State string

const (
	StateIdle     State = "idle"
	StatePending  State = "pending"
	StateChecking State = "checking"
	StateSuccess  State = "success"
	StateFailed   State = "failed"
)

// transitions is the enumerated legal-move table. Cancellation (any -> idle)
// is handled separately.
var transitions = map[State][]State{
	StateIdle:     {StatePending},
	StatePending:  {StateChecking},
	StateChecking: {StatePending, StateSuccess, StateFailed},
	StateFailed:   {StateIdle}, // manual retry
	StateSuccess:  {},
}

// StatusChecker is the slice of the payment use case the loop needs.
type StatusChecker interface {
	CheckStatus(ctx context.Context, depositID string) (*model.Deposit, error)
}

// Loop polls a deposit's status on a fixed interval until a terminal state,
// cancellation, or the attempt bound. It owns its ticker: Cancel releases it
// and no query fires afterwards. One query is in flight at a time.
type Loop struct {
	checker     StatusChecker
	notifier    adapter.Notifier
	interval    time.Duration
	maxAttempts int
	log         *zerolog.Logger

	mu        sync.Mutex
	state     State
	userID    string
	depositID string
	attempts  int
	inFlight  bool
	ticker    *time.Ticker
	stop      chan struct{}
}

func NewLoop(checker StatusChecker, notifier adapter.Notifier, interval time.Duration, maxAttempts int, logger *zerolog.Logger) *Loop {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	return &Loop{
		checker:     checker,
		notifier:    notifier,
		interval:    interval,
		maxAttempts: maxAttempts,
		log:         logger,
		state:       StateIdle,
	}
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Begin moves idle -> pending for the given deposit and starts polling.
func (l *Loop) Begin(ctx context.Context, userID, depositID string) error {
	l.mu.Lock()
	if l.state != StateIdle {
		l.mu.Unlock()
		return fmt.Errorf("confirmation loop already running in state %s", l.state)
	}
	l.userID = userID
	l.depositID = depositID
	l.attempts = 0
	l.setStateLocked(StatePending, "Payment initiated, waiting for confirmation on your phone.")
	l.ticker = time.NewTicker(l.interval)
	l.stop = make(chan struct{})
	ticker, stop := l.ticker, l.stop
	l.mu.Unlock()

	go l.run(ctx, ticker, stop)
	return nil
}

// Cancel moves any state to idle and releases the ticker. The deposit itself
// is not cancelled at the provider; money movement, once initiated, cannot be
// rolled back from the client.
func (l *Loop) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTimerLocked()
	l.state = StateIdle
}

// Retry re-arms a failed loop for a fresh initiation (failed -> idle).
func (l *Loop) Retry() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateFailed {
		return fmt.Errorf("retry only allowed from failed, not %s", l.state)
	}
	l.state = StateIdle
	return nil
}

func (l *Loop) run(ctx context.Context, ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			l.Cancel()
			return
		case <-stop:
			return
		case <-ticker.C:
			l.poll(ctx)
		}
	}
}

func (l *Loop) poll(ctx context.Context) {
	l.mu.Lock()
	if l.state != StatePending || l.inFlight {
		// Never overlap queries; a slow previous call just skips this tick.
		l.mu.Unlock()
		return
	}
	l.inFlight = true
	l.attempts++
	attempts := l.attempts
	depositID := l.depositID
	l.setStateLocked(StateChecking, "")
	l.mu.Unlock()

	d, err := l.checker.CheckStatus(ctx, depositID)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight = false
	if l.state != StateChecking {
		// Cancelled while the query was in flight.
		return
	}

	switch {
	case err != nil:
		// Transient: stay pending and retry next tick, unless out of budget.
		l.log.Warn().Err(err).Str("deposit_id", depositID).Int("attempt", attempts).Msg("status query failed")
		l.rearmOrGiveUpLocked(attempts, "We could not confirm your payment in time. Please try again.")
	case d.Status == model.DepositStatusCompleted:
		l.stopTimerLocked()
		l.setStateLocked(StateSuccess, "Payment confirmed. Your subscription is now active.")
	case d.Status == model.DepositStatusFailed:
		l.stopTimerLocked()
		reason := "Payment failed."
		if d.FailureReason != nil {
			reason = "Payment failed: " + *d.FailureReason
		}
		l.setStateLocked(StateFailed, reason)
	default:
		// Still in progress. No notification on an unchanged pending poll.
		l.rearmOrGiveUpLocked(attempts, "Payment confirmation timed out. Please try again.")
	}
}

// rearmOrGiveUpLocked returns to pending, or fails the loop once the attempt
// bound is exhausted so a stuck provider cannot poll forever.
func (l *Loop) rearmOrGiveUpLocked(attempts int, timeoutMsg string) {
	if attempts >= l.maxAttempts {
		l.stopTimerLocked()
		l.setStateLocked(StateFailed, timeoutMsg)
		return
	}
	l.state = StatePending
}

// setStateLocked applies a legal transition and emits exactly one
// notification when msg is non-empty.
func (l *Loop) setStateLocked(to State, msg string) {
	allowed := false
	for _, s := range transitions[l.state] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		l.log.Error().Str("from", string(l.state)).Str("to", string(to)).Msg("illegal poller transition")
		return
	}
	l.state = to
	if msg != "" && l.notifier != nil {
		l.notifier.Notify(l.userID, msg)
	}
}

func (l *Loop) stopTimerLocked() {
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}
	if l.stop != nil {
		close(l.stop)
		l.stop = nil
	}
}
