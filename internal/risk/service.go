package risk

import (
	"context"
	"fmt"
	"time"

	"quantcontrol/internal/broker"
	"quantcontrol/internal/models"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const serviceName = "RiskSizer"

// gatewayAttempts bounds equity fetch retries within one cycle. Exhaustion
// leaves the row claimed so lease expiry hands it to another sizer.
const gatewayAttempts = 3

// SignalStore is the slice of the durable store the sizer needs.
type SignalStore interface {
	ClaimNext(statusWanted, claimantID string) (*models.Signal, error)
	CommitTransition(id uint, expectedVersion int64, newStatus string, fields map[string]interface{}) error
	ReleaseClaim(sig *models.Signal) error
	LatestClose(symbol, timeframe string) (float64, error)
	LogEvent(service, level, message string)
}

// Config holds the sizer's runtime settings.
type Config struct {
	Params        Params
	MaxSignalAge  time.Duration
	Timeframe     string
	BrokerTimeout time.Duration
}

// Sizer claims PENDING signals and advances each to SIZED, REJECTED or
// EXPIRED.
type Sizer struct {
	store      SignalStore
	gateway    broker.Gateway
	cfg        Config
	claimantID string
}

func NewSizer(store SignalStore, gateway broker.Gateway, cfg Config, claimantID string) *Sizer {
	if cfg.Timeframe == "" {
		cfg.Timeframe = "5m"
	}
	return &Sizer{store: store, gateway: gateway, cfg: cfg, claimantID: claimantID}
}

// RunCycle drains all currently claimable PENDING signals. Rows skipped for
// missing market data stay claimed until the claim loop drains, so the claim
// query cannot hand the same row straight back; their claims are released on
// the way out.
func (s *Sizer) RunCycle(ctx context.Context) error {
	var held []*models.Signal
	defer func() {
		for _, sig := range held {
			if err := s.store.ReleaseClaim(sig); err != nil {
				logger.WithField("signal_id", sig.ID).Errorf("Releasing held claim failed: %v", err)
			}
		}
	}()

	for {
		sig, err := s.store.ClaimNext(models.StatusPending, s.claimantID)
		if err != nil {
			return fmt.Errorf("claim pending signal: %w", err)
		}
		if sig == nil {
			return nil
		}
		release, err := s.sizeOne(ctx, sig)
		if err != nil {
			return err
		}
		if release {
			held = append(held, sig)
		}
	}
}

// sizeOne advances one claimed signal. A true release result tells RunCycle to
// hold the claim for the rest of the cycle and release it afterwards.
func (s *Sizer) sizeOne(ctx context.Context, sig *models.Signal) (bool, error) {
	// Stale signals are expired rather than sized; the market has moved on.
	age := time.Since(sig.CreatedAt)
	if s.cfg.MaxSignalAge > 0 && age > s.cfg.MaxSignalAge {
		msg := fmt.Sprintf("Expiring stale signal %d (%s): %.1f min old", sig.ID, sig.Symbol, age.Minutes())
		logger.WithField("signal_id", sig.ID).Warn(msg)
		s.store.LogEvent(serviceName, "WARNING", msg)
		return false, s.store.CommitTransition(sig.ID, sig.Version, models.StatusExpired, map[string]interface{}{
			"last_error": "signal exceeded max age before sizing",
		})
	}

	entry := sig.EntryPriceHint
	if entry <= 0 {
		px, err := s.store.LatestClose(sig.Symbol, s.cfg.Timeframe)
		if err != nil {
			return false, fmt.Errorf("latest close for %s: %w", sig.Symbol, err)
		}
		entry = px
	}
	if entry <= 0 {
		// No price available yet. Hold the claim so the rest of the queue is
		// still drained this cycle, then release for a retry once the
		// producers catch up.
		logger.WithField("signal_id", sig.ID).Warnf("No market data for %s, skipping this cycle", sig.Symbol)
		return true, nil
	}

	equity, err := s.fetchEquity(ctx)
	if err != nil {
		// Transient gateway exhaustion: leave the row claimed for lease
		// expiry instead of rejecting a viable trade.
		logger.WithField("signal_id", sig.ID).Warnf("Equity fetch failed, leaving claim for lease expiry: %v", err)
		s.store.LogEvent(serviceName, "WARNING", fmt.Sprintf("Equity fetch failed for signal %d: %v", sig.ID, err))
		return false, nil
	}

	plan, ok, reason := ComputePlan(equity, entry, s.cfg.Params)
	if !ok {
		msg := fmt.Sprintf("Rejected signal %d (%s @ %.2f): %s", sig.ID, sig.Symbol, entry, reason)
		logger.WithField("signal_id", sig.ID).Info(msg)
		s.store.LogEvent(serviceName, "INFO", msg)
		return false, s.store.CommitTransition(sig.ID, sig.Version, models.StatusRejected, map[string]interface{}{
			"last_error": reason,
		})
	}

	size, _ := plan.Size.Float64()
	stopLoss, _ := plan.StopLossPrice.Float64()
	takeProfit, _ := plan.TakeProfitPrice.Float64()

	msg := fmt.Sprintf("Sized signal %d: %s @ %.2f -> %s shares", sig.ID, sig.Symbol, entry, plan.Size.String())
	logger.WithField("signal_id", sig.ID).Info(msg)
	s.store.LogEvent(serviceName, "INFO", msg)

	return false, s.store.CommitTransition(sig.ID, sig.Version, models.StatusSized, map[string]interface{}{
		"entry_price_hint":  entry,
		"size":              size,
		"stop_loss_price":   stopLoss,
		"take_profit_price": takeProfit,
		"last_error":        "",
	})
}

func (s *Sizer) fetchEquity(ctx context.Context) (equity decimal.Decimal, err error) {
	for attempt := 0; attempt < gatewayAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.BrokerTimeout)
		equity, err = s.gateway.GetAccountEquity(callCtx)
		cancel()
		if err == nil {
			return equity, nil
		}
		if !broker.IsRetryable(err) {
			return equity, err
		}
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	return equity, err
}
