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

const reconcilerName = "OrderReconciler"

// stopAttempts bounds trailing stop placement retries after a fill. A filled
// position left unprotected is worse than a duplicate status poll, so
// exhaustion still commits, just as EXECUTED_NO_STOP.
const stopAttempts = 3

// Reconciler polls SUBMITTED signals' broker orders and advances them to
// EXECUTED or FAILED. Runs independently of the submission loop.
type Reconciler struct {
	store      SignalStore
	gateway    broker.Gateway
	breaker    *broker.CircuitBreaker
	notifier   Notifier
	timeout    time.Duration
	claimantID string
}

func NewReconciler(store SignalStore, gateway broker.Gateway, breaker *broker.CircuitBreaker, notifier Notifier, timeout time.Duration, claimantID string) *Reconciler {
	return &Reconciler{
		store:      store,
		gateway:    gateway,
		breaker:    breaker,
		notifier:   notifier,
		timeout:    timeout,
		claimantID: claimantID,
	}
}

// RunCycle claims and checks each SUBMITTED signal once. Rows whose orders are
// still open stay claimed until the claim loop drains, so an older open order
// cannot shadow younger fills; all held claims are released on the way out.
func (r *Reconciler) RunCycle(ctx context.Context) error {
	if r.breaker.Tripped() {
		logger.Warn("Circuit breaker open, skipping reconcile cycle")
		return nil
	}

	var held []*models.Signal
	defer func() {
		for _, sig := range held {
			if err := r.store.ReleaseClaim(sig); err != nil {
				logger.WithField("signal_id", sig.ID).Errorf("Releasing held claim failed: %v", err)
			}
		}
	}()

	for {
		sig, err := r.store.ClaimNext(models.StatusSubmitted, r.claimantID)
		if err != nil {
			return fmt.Errorf("claim submitted signal: %w", err)
		}
		if sig == nil {
			return nil
		}

		release, err := r.reconcileOne(ctx, sig)
		if err != nil {
			return err
		}
		if release {
			held = append(held, sig)
		}
		if r.breaker.Tripped() {
			return nil
		}
	}
}

// reconcileOne checks one claimed signal against the broker. A true release
// result tells RunCycle to hold the claim for the rest of the cycle and
// release it afterwards.
func (r *Reconciler) reconcileOne(ctx context.Context, sig *models.Signal) (bool, error) {
	if sig.BrokerOrderID == nil || *sig.BrokerOrderID == "" {
		msg := fmt.Sprintf("Signal %d is SUBMITTED without a broker order id, marking FAILED", sig.ID)
		logger.WithField("signal_id", sig.ID).Warn(msg)
		r.store.LogEvent(reconcilerName, "WARNING", msg)
		return false, r.commitTerminal(sig, models.StatusFailed, map[string]interface{}{
			"last_error": "submitted signal has no broker order id",
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	status, err := r.gateway.GetOrderStatus(callCtx, *sig.BrokerOrderID)
	cancel()

	if err != nil {
		if errors.Is(err, broker.ErrOrderNotFound) {
			msg := fmt.Sprintf("Broker order %s for signal %d no longer exists", *sig.BrokerOrderID, sig.ID)
			logger.WithField("signal_id", sig.ID).Error(msg)
			r.store.LogEvent(reconcilerName, "ERROR", msg)
			return false, r.commitTerminal(sig, models.StatusFailed, map[string]interface{}{
				"last_error": "broker order not found during reconciliation",
			})
		}
		if errors.Is(err, broker.ErrUnavailable) {
			r.breaker.RecordFailure()
		}
		// Status reads have no side effects; try again next cycle.
		logger.WithField("signal_id", sig.ID).Warnf("Order status check failed: %v", err)
		return true, nil
	}
	r.breaker.RecordSuccess()

	switch status.State {
	case broker.OrderOpen:
		return true, nil

	case broker.OrderFilled:
		return false, r.settleFill(ctx, sig, status)

	case broker.OrderRejected, broker.OrderCancelled:
		msg := fmt.Sprintf("Broker order %s for signal %d was %s: %s", *sig.BrokerOrderID, sig.ID, status.State, status.Reason)
		logger.WithField("signal_id", sig.ID).Warn(msg)
		r.store.LogEvent(reconcilerName, "WARNING", msg)
		return false, r.commitTerminal(sig, models.StatusFailed, map[string]interface{}{
			"last_error": status.Reason,
		})

	default:
		return false, fmt.Errorf("unexpected broker order state %q for signal %d", status.State, sig.ID)
	}
}

// settleFill records the fill in the audit table, protects the position with a
// trailing stop, and commits the terminal status.
func (r *Reconciler) settleFill(ctx context.Context, sig *models.Signal, status broker.OrderStatus) error {
	fillPrice, _ := status.FillPrice.Float64()
	filledQty, _ := status.FilledQty.Float64()

	msg := fmt.Sprintf("Order %s (%s) filled: %.4f @ %.2f", *sig.BrokerOrderID, sig.Symbol, filledQty, fillPrice)
	logger.WithField("signal_id", sig.ID).Info(msg)
	r.store.LogEvent(reconcilerName, "INFO", msg)

	trade := &models.ExecutedTrade{
		SignalID:  sig.ID,
		Symbol:    sig.Symbol,
		Timestamp: time.Now().UTC(),
		Price:     fillPrice,
		Qty:       filledQty,
		Side:      sig.Side,
		Strategy:  sig.Strategy,
	}
	if err := r.store.RecordExecutedTrade(trade); err != nil {
		return fmt.Errorf("record executed trade for signal %d: %w", sig.ID, err)
	}

	stop := broker.TrailingStop{
		ClientOrderID: StopClientOrderID(sig.ID),
		Symbol:        sig.Symbol,
		Qty:           filledQty,
	}
	var trailPrice *float64
	if distance, ok := TrailDistance(sig); ok {
		stop.TrailPrice = &distance
		trailPrice = &distance
	} else {
		pct := trailPercentFallback
		stop.TrailPercent = &pct
	}

	fields := map[string]interface{}{
		"fill_price": fillPrice,
		"last_error": "",
	}
	if trailPrice != nil {
		fields["trail_price"] = *trailPrice
	}

	if r.placeTrailingStop(ctx, sig, stop) {
		return r.commitTerminal(sig, models.StatusExecuted, fields)
	}

	msg = fmt.Sprintf("Could not place trailing stop for signal %d (%s) after %d attempts", sig.ID, sig.Symbol, stopAttempts)
	logger.WithField("signal_id", sig.ID).Error(msg)
	r.store.LogEvent(reconcilerName, "ERROR", msg)
	fields["last_error"] = "trailing stop placement failed"
	return r.commitTerminal(sig, models.StatusExecutedNoStop, fields)
}

func (r *Reconciler) placeTrailingStop(ctx context.Context, sig *models.Signal, stop broker.TrailingStop) bool {
	for attempt := 1; attempt <= stopAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		stopOrderID, err := r.gateway.SubmitTrailingStop(callCtx, stop)
		cancel()

		if err == nil {
			logger.WithField("signal_id", sig.ID).Infof("Trailing stop placed for %s: %s", sig.Symbol, stopOrderID)
			return true
		}

		if errors.Is(err, broker.ErrUnknownOutcome) {
			// Same discipline as entry orders: check whether it landed before
			// trying again.
			callCtx, cancel := context.WithTimeout(ctx, r.timeout)
			_, _, qerr := r.gateway.GetOrderByClientID(callCtx, stop.ClientOrderID)
			cancel()
			if qerr == nil {
				logger.WithField("signal_id", sig.ID).Info("Trailing stop found under client id after timeout")
				return true
			}
		}

		logger.WithField("signal_id", sig.ID).Warnf("Trailing stop attempt %d/%d failed: %v", attempt, stopAttempts, err)
		if attempt < stopAttempts {
			time.Sleep(retryPause)
		}
	}
	return false
}

func (r *Reconciler) commitTerminal(sig *models.Signal, status string, fields map[string]interface{}) error {
	if err := r.store.CommitTransition(sig.ID, sig.Version, status, fields); err != nil {
		return err
	}
	if r.notifier != nil {
		r.notifier.SignalTransition(sig, status)
	}
	return nil
}
