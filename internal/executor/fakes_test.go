package executor

import (
	"context"
	"fmt"
	"time"

	"quantcontrol/internal/broker"
	"quantcontrol/internal/models"

	"github.com/shopspring/decimal"
)

// fakeStore mimics the claim/commit protocol in memory: claiming moves a row
// to its claim marker and bumps the version, commits check the expected
// version the way the real CAS update does.
type fakeStore struct {
	signals  []*models.Signal
	trades   []*models.ExecutedTrade
	released []uint
	events   []string
}

func (f *fakeStore) find(id uint) *models.Signal {
	for _, s := range f.signals {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (f *fakeStore) ClaimNext(statusWanted, claimantID string) (*models.Signal, error) {
	for _, s := range f.signals {
		if s.Status == statusWanted {
			s.Status = models.ClaimedStatus(statusWanted)
			s.ClaimedBy = claimantID
			now := time.Now().UTC()
			s.ClaimedAt = &now
			s.Version++
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CommitTransition(id uint, expectedVersion int64, newStatus string, fields map[string]interface{}) error {
	s := f.find(id)
	if s == nil {
		return fmt.Errorf("signal %d not found", id)
	}
	if s.Version != expectedVersion {
		return fmt.Errorf("version conflict on signal %d", id)
	}
	s.Status = newStatus
	s.Version++
	s.ClaimedBy = ""
	s.ClaimedAt = nil
	if v, ok := fields["broker_order_id"]; ok {
		if v == nil {
			s.BrokerOrderID = nil
		} else {
			orderID := v.(string)
			s.BrokerOrderID = &orderID
		}
	}
	if v, ok := fields["last_error"]; ok {
		s.LastError = v.(string)
	}
	if v, ok := fields["fill_price"]; ok {
		fp := v.(float64)
		s.FillPrice = &fp
	}
	if v, ok := fields["trail_price"]; ok {
		tp := v.(float64)
		s.TrailPrice = &tp
	}
	return nil
}

func (f *fakeStore) ReleaseClaim(sig *models.Signal) error {
	s := f.find(sig.ID)
	if s == nil {
		return fmt.Errorf("signal %d not found", sig.ID)
	}
	s.Status = models.PreClaimStatus(s.Status)
	s.ClaimedBy = ""
	s.ClaimedAt = nil
	s.Version++
	f.released = append(f.released, s.ID)
	return nil
}

func (f *fakeStore) RecordExecutedTrade(trade *models.ExecutedTrade) error {
	f.trades = append(f.trades, trade)
	return nil
}

func (f *fakeStore) CountByStatus(status string) (int64, error) {
	var n int64
	for _, s := range f.signals {
		if s.Status == status {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) LogEvent(service, level, message string) {
	f.events = append(f.events, fmt.Sprintf("%s %s %s", service, level, message))
}

// fakeGateway records calls and delegates to per-method hooks. Unset hooks
// behave like a quiet broker: no orders on file, submissions succeed.
type fakeGateway struct {
	equity     decimal.Decimal
	equityErr  error
	submitFn   func(order broker.BracketOrder) (string, error)
	stopFn     func(stop broker.TrailingStop) (string, error)
	statusFn   func(brokerOrderID string) (broker.OrderStatus, error)
	byClientFn func(clientOrderID string) (string, broker.OrderStatus, error)

	submits []broker.BracketOrder
	stops   []broker.TrailingStop
}

func (f *fakeGateway) GetAccountEquity(ctx context.Context) (decimal.Decimal, error) {
	return f.equity, f.equityErr
}

func (f *fakeGateway) SubmitBracketOrder(ctx context.Context, order broker.BracketOrder) (string, error) {
	f.submits = append(f.submits, order)
	if f.submitFn != nil {
		return f.submitFn(order)
	}
	return fmt.Sprintf("broker-%d", len(f.submits)), nil
}

func (f *fakeGateway) SubmitTrailingStop(ctx context.Context, stop broker.TrailingStop) (string, error) {
	f.stops = append(f.stops, stop)
	if f.stopFn != nil {
		return f.stopFn(stop)
	}
	return fmt.Sprintf("stop-%d", len(f.stops)), nil
}

func (f *fakeGateway) GetOrderStatus(ctx context.Context, brokerOrderID string) (broker.OrderStatus, error) {
	if f.statusFn != nil {
		return f.statusFn(brokerOrderID)
	}
	return broker.OrderStatus{}, broker.ErrOrderNotFound
}

func (f *fakeGateway) GetOrderByClientID(ctx context.Context, clientOrderID string) (string, broker.OrderStatus, error) {
	if f.byClientFn != nil {
		return f.byClientFn(clientOrderID)
	}
	return "", broker.OrderStatus{}, broker.ErrOrderNotFound
}

// fakeNotifier records terminal transitions.
type fakeNotifier struct {
	transitions []string
}

func (f *fakeNotifier) SignalTransition(sig *models.Signal, status string) {
	f.transitions = append(f.transitions, fmt.Sprintf("%d:%s", sig.ID, status))
}

func sizedSignal(id uint) *models.Signal {
	size := 100.0
	stop := 47.5
	tp := 55.0
	return &models.Signal{
		ID:             id,
		Symbol:         "NVDA",
		Side:           models.SideBuy,
		Strategy:       models.StrategyTrendBuy,
		Status:         models.StatusSized,
		EntryPriceHint: 50.0,
		Size:           &size,
		StopLossPrice:  &stop,
		TakeProfitPrice: &tp,
		CreatedAt:      time.Now().UTC(),
		Version:        2,
	}
}

func submittedSignal(id uint, brokerOrderID string) *models.Signal {
	s := sizedSignal(id)
	s.Status = models.StatusSubmitted
	s.BrokerOrderID = &brokerOrderID
	s.Version = 3
	return s
}
