package executor

import (
	"context"
	"testing"
	"time"

	"quantcontrol/internal/broker"
	"quantcontrol/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(st *fakeStore, gw *fakeGateway, threshold int) (*Executor, *fakeNotifier) {
	notifier := &fakeNotifier{}
	breaker := broker.NewCircuitBreaker("test", threshold)
	return New(st, gw, breaker, notifier, time.Second, "executor-test"), notifier
}

func TestClientOrderIDs(t *testing.T) {
	// Derived from the signal id alone so every process, before and after a
	// crash, looks for the same order.
	assert.Equal(t, "qc-signal-42", ClientOrderID(42))
	assert.Equal(t, "qc-stop-42", StopClientOrderID(42))
	assert.NotEqual(t, ClientOrderID(7), StopClientOrderID(7))
}

func TestExecutorSubmit(t *testing.T) {
	t.Run("Happy Path", func(t *testing.T) {
		st := &fakeStore{signals: []*models.Signal{sizedSignal(1)}}
		gw := &fakeGateway{}
		exec, notifier := newTestExecutor(st, gw, 3)

		require.NoError(t, exec.RunCycle(context.Background()))

		require.Len(t, gw.submits, 1)
		assert.Equal(t, "qc-signal-1", gw.submits[0].ClientOrderID)
		assert.Equal(t, "NVDA", gw.submits[0].Symbol)
		assert.Equal(t, 100.0, gw.submits[0].Qty)
		assert.Equal(t, 47.5, gw.submits[0].StopLossPrice)

		sig := st.find(1)
		assert.Equal(t, models.StatusSubmitted, sig.Status)
		require.NotNil(t, sig.BrokerOrderID)
		assert.Equal(t, "broker-1", *sig.BrokerOrderID)
		assert.Empty(t, sig.ClaimedBy)
		assert.Empty(t, notifier.transitions, "SUBMITTED is not terminal")
	})

	t.Run("Missing Size Fails", func(t *testing.T) {
		sig := sizedSignal(2)
		sig.Size = nil
		st := &fakeStore{signals: []*models.Signal{sig}}
		gw := &fakeGateway{}
		exec, notifier := newTestExecutor(st, gw, 3)

		require.NoError(t, exec.RunCycle(context.Background()))

		assert.Empty(t, gw.submits)
		assert.Equal(t, models.StatusFailed, st.find(2).Status)
		assert.Equal(t, []string{"2:FAILED"}, notifier.transitions)
	})

	t.Run("Broker Rejection Fails Terminally", func(t *testing.T) {
		st := &fakeStore{signals: []*models.Signal{sizedSignal(3)}}
		gw := &fakeGateway{
			submitFn: func(broker.BracketOrder) (string, error) {
				return "", &broker.RejectionError{Reason: "insufficient buying power"}
			},
		}
		exec, notifier := newTestExecutor(st, gw, 3)

		require.NoError(t, exec.RunCycle(context.Background()))

		require.Len(t, gw.submits, 1, "rejection must not be retried")
		sig := st.find(3)
		assert.Equal(t, models.StatusFailed, sig.Status)
		assert.Equal(t, "insufficient buying power", sig.LastError)
		assert.Equal(t, []string{"3:FAILED"}, notifier.transitions)
	})

	t.Run("Unavailable Trips Breaker And Releases Claim", func(t *testing.T) {
		st := &fakeStore{signals: []*models.Signal{sizedSignal(4)}}
		gw := &fakeGateway{
			submitFn: func(broker.BracketOrder) (string, error) {
				return "", broker.ErrUnavailable
			},
		}
		exec, _ := newTestExecutor(st, gw, 1)

		require.NoError(t, exec.RunCycle(context.Background()))

		require.Len(t, gw.submits, 1)
		// An unreachable broker never saw the order, so the row goes straight
		// back to SIZED instead of waiting out the lease.
		assert.Equal(t, models.StatusSized, st.find(4).Status)
		assert.Equal(t, []uint{4}, st.released)
	})

	t.Run("Tripped Breaker Skips Cycle", func(t *testing.T) {
		st := &fakeStore{signals: []*models.Signal{sizedSignal(5)}}
		gw := &fakeGateway{}
		breaker := broker.NewCircuitBreaker("test", 1)
		breaker.RecordFailure()
		exec := New(st, gw, breaker, nil, time.Second, "executor-test")

		require.NoError(t, exec.RunCycle(context.Background()))
		assert.Empty(t, gw.submits)
		assert.Equal(t, models.StatusSized, st.find(5).Status)
	})
}

func TestExecutorCrashRecovery(t *testing.T) {
	t.Run("Prior Submit Found By Client ID", func(t *testing.T) {
		// A previous claimant crashed after the broker accepted the order but
		// before the commit. The order must be adopted, not resubmitted.
		st := &fakeStore{signals: []*models.Signal{sizedSignal(6)}}
		gw := &fakeGateway{
			byClientFn: func(clientOrderID string) (string, broker.OrderStatus, error) {
				if clientOrderID == "qc-signal-6" {
					return "broker-prior", broker.OrderStatus{State: broker.OrderOpen}, nil
				}
				return "", broker.OrderStatus{}, broker.ErrOrderNotFound
			},
		}
		exec, _ := newTestExecutor(st, gw, 3)

		require.NoError(t, exec.RunCycle(context.Background()))

		assert.Empty(t, gw.submits, "must not resubmit an order already on file")
		sig := st.find(6)
		assert.Equal(t, models.StatusSubmitted, sig.Status)
		require.NotNil(t, sig.BrokerOrderID)
		assert.Equal(t, "broker-prior", *sig.BrokerOrderID)
	})

	t.Run("Stored Order ID Recommits Submitted", func(t *testing.T) {
		// Crash between recording the broker order id and the status advance.
		sig := sizedSignal(7)
		orderID := "broker-existing"
		sig.BrokerOrderID = &orderID
		st := &fakeStore{signals: []*models.Signal{sig}}
		gw := &fakeGateway{
			statusFn: func(brokerOrderID string) (broker.OrderStatus, error) {
				return broker.OrderStatus{State: broker.OrderOpen}, nil
			},
		}
		exec, _ := newTestExecutor(st, gw, 3)

		require.NoError(t, exec.RunCycle(context.Background()))

		assert.Empty(t, gw.submits)
		assert.Equal(t, models.StatusSubmitted, st.find(7).Status)
	})

	t.Run("Stored Order ID Unknown To Broker Is Cleared", func(t *testing.T) {
		sig := sizedSignal(8)
		orderID := "broker-phantom"
		sig.BrokerOrderID = &orderID
		st := &fakeStore{signals: []*models.Signal{sig}}
		gw := &fakeGateway{}
		exec, _ := newTestExecutor(st, gw, 3)

		claimed, err := st.ClaimNext(models.StatusSized, "executor-test")
		require.NoError(t, err)
		require.NoError(t, exec.submitOne(context.Background(), claimed))

		// Back to SIZED with the phantom id gone; the next pass runs the
		// client-id recovery and then submits for real.
		got := st.find(8)
		assert.Equal(t, models.StatusSized, got.Status)
		assert.Nil(t, got.BrokerOrderID)
	})

	t.Run("Unknown Outcome Requeries Before Resubmit", func(t *testing.T) {
		// The first submit times out; the re-query finds the order landed.
		st := &fakeStore{signals: []*models.Signal{sizedSignal(9)}}
		landed := false
		gw := &fakeGateway{}
		gw.submitFn = func(broker.BracketOrder) (string, error) {
			landed = true
			return "", broker.ErrUnknownOutcome
		}
		gw.byClientFn = func(clientOrderID string) (string, broker.OrderStatus, error) {
			if landed {
				return "broker-landed", broker.OrderStatus{State: broker.OrderOpen}, nil
			}
			return "", broker.OrderStatus{}, broker.ErrOrderNotFound
		}
		exec, _ := newTestExecutor(st, gw, 3)

		require.NoError(t, exec.RunCycle(context.Background()))

		require.Len(t, gw.submits, 1, "exactly one wire submit despite the timeout")
		sig := st.find(9)
		assert.Equal(t, models.StatusSubmitted, sig.Status)
		require.NotNil(t, sig.BrokerOrderID)
		assert.Equal(t, "broker-landed", *sig.BrokerOrderID)
	})
}
