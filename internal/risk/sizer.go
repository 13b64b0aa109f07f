// Package risk sizes claimed PENDING signals against current account equity.
// The sizing itself is a pure function of (equity, entry price, parameters) so
// every decision is deterministic and replayable.
package risk

import (
	"github.com/shopspring/decimal"
)

// Params are the externally configured risk knobs.
type Params struct {
	RiskFraction          float64
	StopLossFraction      float64
	MaxAllocationFraction float64
	TakeProfitRatio       float64
}

// Plan is a fully sized trade: how many units, and where the bracket legs sit.
type Plan struct {
	Size            decimal.Decimal
	StopDistance    decimal.Decimal
	StopLossPrice   decimal.Decimal
	TakeProfitPrice decimal.Decimal
}

// ComputePlan sizes a position:
//
//	risk_amount   = equity * risk_fraction
//	stop_distance = entry * stop_loss_fraction
//	size          = floor(risk_amount / stop_distance)
//
// capped so size*entry <= equity*max_allocation_fraction. ok is false when the
// caps leave no room for even one unit, with reason explaining why.
func ComputePlan(equity decimal.Decimal, entryPrice float64, p Params) (plan Plan, ok bool, reason string) {
	entry := decimal.NewFromFloat(entryPrice)
	if entry.LessThanOrEqual(decimal.Zero) {
		return Plan{}, false, "entry price is not positive"
	}
	if equity.LessThanOrEqual(decimal.Zero) {
		return Plan{}, false, "account equity is not positive"
	}

	riskAmount := equity.Mul(decimal.NewFromFloat(p.RiskFraction))
	stopDistance := entry.Mul(decimal.NewFromFloat(p.StopLossFraction))
	if stopDistance.LessThanOrEqual(decimal.Zero) {
		return Plan{}, false, "stop distance is not positive"
	}

	size := riskAmount.Div(stopDistance).Floor()

	maxNotional := equity.Mul(decimal.NewFromFloat(p.MaxAllocationFraction))
	maxSize := maxNotional.Div(entry).Floor()
	if size.GreaterThan(maxSize) {
		size = maxSize
	}

	if size.LessThan(decimal.NewFromInt(1)) {
		return Plan{}, false, "size below one unit within risk and allocation caps"
	}

	return Plan{
		Size:            size,
		StopDistance:    stopDistance,
		StopLossPrice:   entry.Sub(stopDistance).Round(2),
		TakeProfitPrice: entry.Add(stopDistance.Mul(decimal.NewFromFloat(p.TakeProfitRatio))).Round(2),
	}, true, ""
}
