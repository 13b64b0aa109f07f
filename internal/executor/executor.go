// Package executor owns the broker-facing half of the pipeline: submitting
// bracket orders for SIZED signals and reconciling SUBMITTED ones against
// broker state. The two loops are decoupled so a slow broker never blocks new
// submissions.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quantcontrol/internal/broker"
	"quantcontrol/internal/models"

	logger "github.com/sirupsen/logrus"
)

const (
	serviceName = "OrderExecutor"

	// submitAttempts bounds broker submission retries within one claim. If the
	// last failure left the outcome unknown the row stays claimed for lease
	// expiry; a plainly unreachable broker releases it for immediate retry.
	submitAttempts = 3

	retryPause = 3 * time.Second
)

// SignalStore is the slice of the durable store the executor and reconciler
// need.
type SignalStore interface {
	ClaimNext(statusWanted, claimantID string) (*models.Signal, error)
	CommitTransition(id uint, expectedVersion int64, newStatus string, fields map[string]interface{}) error
	ReleaseClaim(sig *models.Signal) error
	RecordExecutedTrade(trade *models.ExecutedTrade) error
	CountByStatus(status string) (int64, error)
	LogEvent(service, level, message string)
}

// Notifier publishes terminal transitions for downstream consumers. May be nil
// when notifications are not configured.
type Notifier interface {
	SignalTransition(sig *models.Signal, status string)
}

// Executor claims SIZED signals and submits bracket orders, guaranteeing
// at-most-once submission per signal via deterministic client order ids.
type Executor struct {
	store      SignalStore
	gateway    broker.Gateway
	breaker    *broker.CircuitBreaker
	notifier   Notifier
	timeout    time.Duration
	claimantID string
}

func New(store SignalStore, gateway broker.Gateway, breaker *broker.CircuitBreaker, notifier Notifier, timeout time.Duration, claimantID string) *Executor {
	return &Executor{
		store:      store,
		gateway:    gateway,
		breaker:    breaker,
		notifier:   notifier,
		timeout:    timeout,
		claimantID: claimantID,
	}
}

// ClientOrderID is the deterministic broker client id for a signal's entry
// order. It is derived from the signal id alone so any executor process, after
// any crash, looks for the same order.
func ClientOrderID(signalID uint) string {
	return fmt.Sprintf("qc-signal-%d", signalID)
}

// StopClientOrderID is the deterministic client id for a signal's protective
// trailing stop.
func StopClientOrderID(signalID uint) string {
	return fmt.Sprintf("qc-stop-%d", signalID)
}

// RunCycle drains all currently claimable SIZED signals.
func (e *Executor) RunCycle(ctx context.Context) error {
	if e.breaker.Tripped() {
		logger.Warn("Circuit breaker open, skipping executor cycle")
		return nil
	}

	for {
		sig, err := e.store.ClaimNext(models.StatusSized, e.claimantID)
		if err != nil {
			return fmt.Errorf("claim sized signal: %w", err)
		}
		if sig == nil {
			return nil
		}
		if err := e.submitOne(ctx, sig); err != nil {
			return err
		}
		if e.breaker.Tripped() {
			return nil
		}
	}
}

func (e *Executor) submitOne(ctx context.Context, sig *models.Signal) error {
	if sig.Size == nil || *sig.Size <= 0 {
		return e.commitTerminal(sig, models.StatusFailed, map[string]interface{}{
			"last_error": "sized signal has no size",
		})
	}
	if sig.StopLossPrice == nil {
		return e.commitTerminal(sig, models.StatusFailed, map[string]interface{}{
			"last_error": "sized signal has no stop loss price",
		})
	}

	// Idempotency guard. A prior claimant may have crashed between submit and
	// commit, or the row may already carry an order id from a partially
	// completed attempt. Either way the broker is queried before anything is
	// resubmitted.
	if sig.BrokerOrderID != nil && *sig.BrokerOrderID != "" {
		return e.recoverKnownOrder(ctx, sig, *sig.BrokerOrderID)
	}
	if found, err := e.recoverByClientID(ctx, sig); found || err != nil {
		return err
	}

	order := broker.BracketOrder{
		ClientOrderID:   ClientOrderID(sig.ID),
		Symbol:          sig.Symbol,
		Side:            sig.Side,
		Qty:             *sig.Size,
		StopLossPrice:   *sig.StopLossPrice,
		TakeProfitPrice: sig.TakeProfitPrice,
	}

	var lastErr error
	for attempt := 1; attempt <= submitAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		brokerOrderID, err := e.gateway.SubmitBracketOrder(callCtx, order)
		cancel()

		if err == nil {
			e.breaker.RecordSuccess()
			msg := fmt.Sprintf("Signal %d (%s) submitted, broker order %s", sig.ID, sig.Symbol, brokerOrderID)
			logger.WithField("signal_id", sig.ID).Info(msg)
			e.store.LogEvent(serviceName, "INFO", msg)
			return e.store.CommitTransition(sig.ID, sig.Version, models.StatusSubmitted, map[string]interface{}{
				"broker_order_id": brokerOrderID,
				"last_error":      "",
			})
		}

		var rejection *broker.RejectionError
		if errors.As(err, &rejection) {
			msg := fmt.Sprintf("Broker rejected signal %d (%s): %s", sig.ID, sig.Symbol, rejection.Reason)
			logger.WithField("signal_id", sig.ID).Error(msg)
			e.store.LogEvent(serviceName, "ERROR", msg)
			return e.commitTerminal(sig, models.StatusFailed, map[string]interface{}{
				"last_error": rejection.Reason,
			})
		}

		if errors.Is(err, broker.ErrUnknownOutcome) {
			// The order may have landed. Re-query by client id before even
			// thinking about another submit.
			found, qerr := e.recoverByClientID(ctx, sig)
			if found || qerr != nil {
				return qerr
			}
			lastErr = err
			time.Sleep(retryPause)
			continue
		}

		if errors.Is(err, broker.ErrUnavailable) {
			e.breaker.RecordFailure()
			if e.breaker.Tripped() {
				// The request never reached the broker, so handing the row
				// back is safe and faster than waiting out the lease.
				return e.store.ReleaseClaim(sig)
			}
			lastErr = err
			time.Sleep(retryPause)
			continue
		}

		return fmt.Errorf("submit order for signal %d: %w", sig.ID, err)
	}

	if errors.Is(lastErr, broker.ErrUnavailable) {
		// Every attempt failed cleanly before the broker saw it. Release for
		// an immediate retry elsewhere.
		msg := fmt.Sprintf("Releasing signal %d after %d submit attempts: %v", sig.ID, submitAttempts, lastErr)
		logger.WithField("signal_id", sig.ID).Warn(msg)
		e.store.LogEvent(serviceName, "WARNING", msg)
		return e.store.ReleaseClaim(sig)
	}

	// Retries exhausted with an unknown outcome. Leave the row claimed: the
	// lease will expire and the next claimant re-runs the recovery query.
	msg := fmt.Sprintf("Leaving signal %d claimed after %d submit attempts: %v", sig.ID, submitAttempts, lastErr)
	logger.WithField("signal_id", sig.ID).Warn(msg)
	e.store.LogEvent(serviceName, "WARNING", msg)
	return nil
}

// recoverKnownOrder handles a claimed row that already carries a broker order
// id: the order exists, only the status advance was lost. Re-commit SUBMITTED
// and let the reconciler take it from there.
func (e *Executor) recoverKnownOrder(ctx context.Context, sig *models.Signal, brokerOrderID string) error {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	_, err := e.gateway.GetOrderStatus(callCtx, brokerOrderID)
	cancel()

	if errors.Is(err, broker.ErrOrderNotFound) {
		// Recorded id the broker never saw. Clear it and fall back to the
		// client-id recovery on the next pass.
		logger.WithField("signal_id", sig.ID).Warnf("Recorded broker order %s unknown to broker, clearing", brokerOrderID)
		return e.store.CommitTransition(sig.ID, sig.Version, models.StatusSized, map[string]interface{}{
			"broker_order_id": nil,
		})
	}
	if err != nil {
		// Cannot verify; leave claimed for lease expiry.
		logger.WithField("signal_id", sig.ID).Warnf("Could not verify broker order %s: %v", brokerOrderID, err)
		return nil
	}

	logger.WithField("signal_id", sig.ID).Infof("Recovered existing broker order %s, committing SUBMITTED", brokerOrderID)
	return e.store.CommitTransition(sig.ID, sig.Version, models.StatusSubmitted, map[string]interface{}{
		"broker_order_id": brokerOrderID,
		"last_error":      "",
	})
}

// recoverByClientID checks whether a prior attempt's submit landed under the
// signal's deterministic client id. Returns found=true when it did and the
// row was committed SUBMITTED.
func (e *Executor) recoverByClientID(ctx context.Context, sig *models.Signal) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	brokerOrderID, _, err := e.gateway.GetOrderByClientID(callCtx, ClientOrderID(sig.ID))
	cancel()

	if errors.Is(err, broker.ErrOrderNotFound) {
		return false, nil
	}
	if err != nil {
		// Unknown; leave claimed rather than risking a duplicate submit.
		logger.WithField("signal_id", sig.ID).Warnf("Client order id lookup failed: %v", err)
		return true, nil
	}

	msg := fmt.Sprintf("Signal %d already has broker order %s from a prior attempt, not resubmitting", sig.ID, brokerOrderID)
	logger.WithField("signal_id", sig.ID).Info(msg)
	e.store.LogEvent(serviceName, "INFO", msg)
	return true, e.store.CommitTransition(sig.ID, sig.Version, models.StatusSubmitted, map[string]interface{}{
		"broker_order_id": brokerOrderID,
		"last_error":      "",
	})
}

func (e *Executor) commitTerminal(sig *models.Signal, status string, fields map[string]interface{}) error {
	if err := e.store.CommitTransition(sig.ID, sig.Version, status, fields); err != nil {
		return err
	}
	if e.notifier != nil {
		e.notifier.SignalTransition(sig, status)
	}
	return nil
}
