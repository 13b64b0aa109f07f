package executor

import (
	"context"
	"testing"
	"time"

	"quantcontrol/internal/broker"
	"quantcontrol/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReconciler(st *fakeStore, gw *fakeGateway) (*Reconciler, *fakeNotifier) {
	notifier := &fakeNotifier{}
	breaker := broker.NewCircuitBreaker("test", 3)
	return NewReconciler(st, gw, breaker, notifier, time.Second, "reconciler-test"), notifier
}

func filledStatus(price, qty float64) broker.OrderStatus {
	return broker.OrderStatus{
		State:     broker.OrderFilled,
		FillPrice: decimal.NewFromFloat(price),
		FilledQty: decimal.NewFromFloat(qty),
	}
}

func TestReconciler(t *testing.T) {
	t.Run("Open Order Is Released", func(t *testing.T) {
		st := &fakeStore{signals: []*models.Signal{submittedSignal(1, "broker-1")}}
		gw := &fakeGateway{
			statusFn: func(string) (broker.OrderStatus, error) {
				return broker.OrderStatus{State: broker.OrderOpen}, nil
			},
		}
		recon, notifier := newTestReconciler(st, gw)

		require.NoError(t, recon.RunCycle(context.Background()))

		// Released back to SUBMITTED for the next cycle, checked once per
		// cycle despite becoming claimable again immediately.
		assert.Equal(t, models.StatusSubmitted, st.find(1).Status)
		assert.Equal(t, []uint{1}, st.released)
		assert.Empty(t, st.trades)
		assert.Empty(t, notifier.transitions)
	})

	t.Run("Younger Fill Settles Behind Open Order", func(t *testing.T) {
		// An older order that stays open must not shadow younger rows; the
		// cycle has to poll every SUBMITTED signal.
		st := &fakeStore{signals: []*models.Signal{
			submittedSignal(10, "broker-10"),
			submittedSignal(11, "broker-11"),
		}}
		gw := &fakeGateway{
			statusFn: func(brokerOrderID string) (broker.OrderStatus, error) {
				if brokerOrderID == "broker-10" {
					return broker.OrderStatus{State: broker.OrderOpen}, nil
				}
				return filledStatus(51.0, 100), nil
			},
		}
		recon, notifier := newTestReconciler(st, gw)

		require.NoError(t, recon.RunCycle(context.Background()))

		assert.Equal(t, models.StatusExecuted, st.find(11).Status)
		require.Len(t, st.trades, 1)
		assert.Equal(t, uint(11), st.trades[0].SignalID)
		assert.Equal(t, []string{"11:EXECUTED"}, notifier.transitions)

		// The open order went back to SUBMITTED only after the loop drained.
		assert.Equal(t, models.StatusSubmitted, st.find(10).Status)
		assert.Equal(t, []uint{10}, st.released)
	})

	t.Run("Fill Settles To Executed", func(t *testing.T) {
		atr := 2.0
		sig := submittedSignal(2, "broker-2")
		sig.ATR = &atr
		st := &fakeStore{signals: []*models.Signal{sig}}
		gw := &fakeGateway{
			statusFn: func(string) (broker.OrderStatus, error) {
				return filledStatus(50.25, 100), nil
			},
		}
		recon, notifier := newTestReconciler(st, gw)

		require.NoError(t, recon.RunCycle(context.Background()))

		got := st.find(2)
		assert.Equal(t, models.StatusExecuted, got.Status)
		require.NotNil(t, got.FillPrice)
		assert.Equal(t, 50.25, *got.FillPrice)

		require.Len(t, st.trades, 1)
		assert.Equal(t, uint(2), st.trades[0].SignalID)
		assert.Equal(t, 50.25, st.trades[0].Price)
		assert.Equal(t, 100.0, st.trades[0].Qty)
		assert.Equal(t, models.StrategyTrendBuy, st.trades[0].Strategy)

		// TREND_BUY rides a 3x ATR trailing stop, keyed to the fill quantity.
		require.Len(t, gw.stops, 1)
		assert.Equal(t, "qc-stop-2", gw.stops[0].ClientOrderID)
		assert.Equal(t, 100.0, gw.stops[0].Qty)
		require.NotNil(t, gw.stops[0].TrailPrice)
		assert.Equal(t, 6.0, *gw.stops[0].TrailPrice)
		require.NotNil(t, got.TrailPrice)
		assert.Equal(t, 6.0, *got.TrailPrice)

		assert.Equal(t, []string{"2:EXECUTED"}, notifier.transitions)
	})

	t.Run("Fill Without ATR Uses Percent Stop", func(t *testing.T) {
		st := &fakeStore{signals: []*models.Signal{submittedSignal(3, "broker-3")}}
		gw := &fakeGateway{
			statusFn: func(string) (broker.OrderStatus, error) {
				return filledStatus(50.0, 100), nil
			},
		}
		recon, _ := newTestReconciler(st, gw)

		require.NoError(t, recon.RunCycle(context.Background()))

		require.Len(t, gw.stops, 1)
		assert.Nil(t, gw.stops[0].TrailPrice)
		require.NotNil(t, gw.stops[0].TrailPercent)
		assert.Equal(t, 2.0, *gw.stops[0].TrailPercent)
		assert.Nil(t, st.find(3).TrailPrice)
	})

	t.Run("Stop Timeout Recovered By Client ID", func(t *testing.T) {
		st := &fakeStore{signals: []*models.Signal{submittedSignal(4, "broker-4")}}
		gw := &fakeGateway{
			statusFn: func(string) (broker.OrderStatus, error) {
				return filledStatus(50.0, 100), nil
			},
			stopFn: func(broker.TrailingStop) (string, error) {
				return "", broker.ErrUnknownOutcome
			},
			byClientFn: func(clientOrderID string) (string, broker.OrderStatus, error) {
				return "stop-landed", broker.OrderStatus{State: broker.OrderOpen}, nil
			},
		}
		recon, _ := newTestReconciler(st, gw)

		require.NoError(t, recon.RunCycle(context.Background()))

		// The stop landed despite the timeout; one wire submit, EXECUTED.
		require.Len(t, gw.stops, 1)
		assert.Equal(t, models.StatusExecuted, st.find(4).Status)
	})

	t.Run("Rejected Order Fails", func(t *testing.T) {
		st := &fakeStore{signals: []*models.Signal{submittedSignal(5, "broker-5")}}
		gw := &fakeGateway{
			statusFn: func(string) (broker.OrderStatus, error) {
				return broker.OrderStatus{State: broker.OrderRejected, Reason: "halted symbol"}, nil
			},
		}
		recon, notifier := newTestReconciler(st, gw)

		require.NoError(t, recon.RunCycle(context.Background()))

		got := st.find(5)
		assert.Equal(t, models.StatusFailed, got.Status)
		assert.Equal(t, "halted symbol", got.LastError)
		assert.Empty(t, st.trades)
		assert.Equal(t, []string{"5:FAILED"}, notifier.transitions)
	})

	t.Run("Vanished Order Fails", func(t *testing.T) {
		st := &fakeStore{signals: []*models.Signal{submittedSignal(6, "broker-6")}}
		gw := &fakeGateway{
			statusFn: func(string) (broker.OrderStatus, error) {
				return broker.OrderStatus{}, broker.ErrOrderNotFound
			},
		}
		recon, _ := newTestReconciler(st, gw)

		require.NoError(t, recon.RunCycle(context.Background()))
		assert.Equal(t, models.StatusFailed, st.find(6).Status)
	})

	t.Run("Missing Broker Order ID Fails", func(t *testing.T) {
		sig := submittedSignal(7, "")
		sig.BrokerOrderID = nil
		st := &fakeStore{signals: []*models.Signal{sig}}
		recon, _ := newTestReconciler(st, &fakeGateway{})

		require.NoError(t, recon.RunCycle(context.Background()))
		assert.Equal(t, models.StatusFailed, st.find(7).Status)
	})

	t.Run("Transient Status Failure Releases", func(t *testing.T) {
		st := &fakeStore{signals: []*models.Signal{submittedSignal(8, "broker-8")}}
		gw := &fakeGateway{
			statusFn: func(string) (broker.OrderStatus, error) {
				return broker.OrderStatus{}, broker.ErrUnavailable
			},
		}
		recon, _ := newTestReconciler(st, gw)

		require.NoError(t, recon.RunCycle(context.Background()))

		// Status reads are side-effect free; released, never failed.
		assert.Equal(t, models.StatusSubmitted, st.find(8).Status)
		assert.NotEmpty(t, st.released)
	})
}
