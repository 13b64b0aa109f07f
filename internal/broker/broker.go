// Package broker defines the account/broker gateway boundary. The gateway may
// be slow, rate-limited or transiently unavailable; callers must treat
// timeouts as unknown outcome, never as proof an order was not placed.
package broker

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Order lifecycle states as seen from the broker side.
const (
	OrderOpen      = "OPEN"
	OrderFilled    = "FILLED"
	OrderRejected  = "REJECTED"
	OrderCancelled = "CANCELLED"
)

var (
	// ErrUnknownOutcome means the request may or may not have reached the
	// broker (timeout, connection drop mid-flight). The order must be
	// re-queried before any terminal decision.
	ErrUnknownOutcome = errors.New("broker call outcome unknown")

	// ErrUnavailable is a transient gateway failure where the request
	// definitely did not execute (connection refused, 429, 5xx).
	ErrUnavailable = errors.New("broker temporarily unavailable")

	// ErrOrderNotFound means the broker has no record of the queried order.
	// During crash recovery this is proof the prior submit never landed.
	ErrOrderNotFound = errors.New("broker order not found")
)

// RejectionError is a hard broker-side refusal with a recorded reason.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("broker rejected order: %s", e.Reason)
}

// BracketOrder is an entry order with an attached stop loss and optional take
// profit. ClientOrderID is chosen deterministically by the caller so an
// interrupted submission can be found again instead of resubmitted.
type BracketOrder struct {
	ClientOrderID   string
	Symbol          string
	Side            string // BUY or SELL
	Qty             float64
	StopLossPrice   float64
	TakeProfitPrice *float64
}

// TrailingStop protects a filled position. Exactly one of TrailPrice (absolute
// distance) or TrailPercent is set.
type TrailingStop struct {
	ClientOrderID string
	Symbol        string
	Qty           float64
	TrailPrice    *float64
	TrailPercent  *float64
}

// OrderStatus is the broker's view of a previously submitted order.
type OrderStatus struct {
	State     string
	FillPrice decimal.Decimal
	FilledQty decimal.Decimal
	Reason    string
}

// Gateway is the external account/broker interface consumed by the sizer and
// executor stages.
type Gateway interface {
	GetAccountEquity(ctx context.Context) (decimal.Decimal, error)
	SubmitBracketOrder(ctx context.Context, order BracketOrder) (string, error)
	SubmitTrailingStop(ctx context.Context, stop TrailingStop) (string, error)
	GetOrderStatus(ctx context.Context, brokerOrderID string) (OrderStatus, error)
	// GetOrderByClientID resolves an order by the deterministic client id the
	// caller submitted with. ErrOrderNotFound means the submit never landed.
	GetOrderByClientID(ctx context.Context, clientOrderID string) (string, OrderStatus, error)
}

// IsRetryable reports whether a gateway error is worth another bounded attempt
// (either flavor of transient failure).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, ErrUnknownOutcome)
}
