package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultParams() Params {
	return Params{
		RiskFraction:          0.01,
		StopLossFraction:      0.05,
		MaxAllocationFraction: 0.20,
		TakeProfitRatio:       2.0,
	}
}

func TestComputePlan(t *testing.T) {
	t.Run("Standard Sizing", func(t *testing.T) {
		// 100k equity, 1% risk, 5% stop at $50 entry:
		// risk 1000 / stop 2.50 = 400 shares, notional 20k = exactly the 20% cap.
		plan, ok, reason := ComputePlan(decimal.NewFromInt(100000), 50.0, defaultParams())
		require.True(t, ok, reason)
		assert.Equal(t, "400", plan.Size.String())
		assert.True(t, plan.StopDistance.Equal(decimal.NewFromFloat(2.5)), "stop distance: %s", plan.StopDistance)
		assert.Equal(t, "47.5", plan.StopLossPrice.String())
		assert.Equal(t, "55", plan.TakeProfitPrice.String())
	})

	t.Run("Allocation Cap Binds", func(t *testing.T) {
		// Tight allocation forces the cap below the risk-based size.
		p := defaultParams()
		p.MaxAllocationFraction = 0.10
		plan, ok, _ := ComputePlan(decimal.NewFromInt(100000), 50.0, p)
		require.True(t, ok)
		// 10% of 100k = 10k notional, / 50 = 200 shares, below risk size 400.
		assert.Equal(t, "200", plan.Size.String())
	})

	t.Run("Fractional Size Floors", func(t *testing.T) {
		// risk 1000 / stop 3.75 = 266.67 -> 266 shares.
		plan, ok, _ := ComputePlan(decimal.NewFromInt(100000), 75.0, defaultParams())
		require.True(t, ok)
		assert.Equal(t, "266", plan.Size.String())
	})

	t.Run("Size Below One Unit", func(t *testing.T) {
		// Tiny account against an expensive symbol: cap leaves no room.
		_, ok, reason := ComputePlan(decimal.NewFromInt(1000), 3000.0, defaultParams())
		assert.False(t, ok)
		assert.Contains(t, reason, "below one unit")
	})

	t.Run("Non-Positive Entry", func(t *testing.T) {
		_, ok, reason := ComputePlan(decimal.NewFromInt(100000), 0, defaultParams())
		assert.False(t, ok)
		assert.Contains(t, reason, "entry price")

		_, ok, _ = ComputePlan(decimal.NewFromInt(100000), -10, defaultParams())
		assert.False(t, ok)
	})

	t.Run("Non-Positive Equity", func(t *testing.T) {
		_, ok, reason := ComputePlan(decimal.Zero, 50.0, defaultParams())
		assert.False(t, ok)
		assert.Contains(t, reason, "equity")
	})

	t.Run("Zero Stop Loss Fraction", func(t *testing.T) {
		p := defaultParams()
		p.StopLossFraction = 0
		_, ok, reason := ComputePlan(decimal.NewFromInt(100000), 50.0, p)
		assert.False(t, ok)
		assert.Contains(t, reason, "stop distance")
	})

	t.Run("Take Profit Ratio", func(t *testing.T) {
		p := defaultParams()
		p.TakeProfitRatio = 3.0
		plan, ok, _ := ComputePlan(decimal.NewFromInt(100000), 100.0, p)
		require.True(t, ok)
		// stop distance 5.00, TP = 100 + 15 = 115.
		assert.Equal(t, "115", plan.TakeProfitPrice.String())
	})

	t.Run("No Float Drift On Cents", func(t *testing.T) {
		// 0.1 + 0.2 style cases must stay exact in decimal math.
		plan, ok, _ := ComputePlan(decimal.NewFromInt(100000), 10.30, defaultParams())
		require.True(t, ok)
		assert.Equal(t, "9.79", plan.StopLossPrice.String())
		assert.Equal(t, "11.33", plan.TakeProfitPrice.String())
	})
}
