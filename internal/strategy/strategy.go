// Package strategy evaluates market snapshots against the trading strategies
// and inserts PENDING signals. Predicates are pure functions of the snapshot
// so they can be tested without a store.
package strategy

import (
	"quantcontrol/internal/store"
)

// Strategy thresholds.
const (
	rsiOversold = 30.0

	trendRSIMin = 35.0
	trendRSIMax = 55.0

	// Minimum predicted move (fraction of price) required per tier.
	scalpConviction = 0.003
	buyConviction   = 0.005
)

// Regime is the macro market state derived from the index symbol.
type Regime string

const (
	RegimeBull Regime = "BULL"
	RegimeBear Regime = "BEAR"
)

// RegimeFromView classifies the macro regime: BEAR when the index trades
// below its 50-period SMA, BULL otherwise (and when data is missing).
func RegimeFromView(view *store.MarketView) Regime {
	if view == nil || view.SMA50 == nil {
		return RegimeBull
	}
	if view.Close < *view.SMA50 {
		return RegimeBear
	}
	return RegimeBull
}

// MeanReversionSetup: price pierced the lower volatility band while deeply
// oversold. Sentiment is confirmed separately because it needs a second read.
func MeanReversionSetup(view *store.MarketView) bool {
	if view.LowerBB == nil || view.RSI14 == nil {
		return false
	}
	return view.Close < *view.LowerBB && *view.RSI14 < rsiOversold
}

// VwapScalp: momentum above VWAP on elevated volume with a positive forecast.
func VwapScalp(view *store.MarketView, predictedPctChange float64) bool {
	if view.VWAP == nil || view.VolumeSMA20 == nil {
		return false
	}
	return view.Close > *view.VWAP &&
		view.Volume > *view.VolumeSMA20 &&
		predictedPctChange > scalpConviction
}

// DeepValueBuy: a mega-cap from the kings list trading below its 200-period
// SMA while deeply oversold, with a strong positive forecast.
func DeepValueBuy(view *store.MarketView, predictedPctChange float64, isKing bool) bool {
	if !isKing || view.SMA200 == nil || view.RSI14 == nil {
		return false
	}
	return view.Close < *view.SMA200 &&
		*view.RSI14 < rsiOversold &&
		predictedPctChange > buyConviction
}

// TrendBuy: a healthy pullback inside a long-term uptrend, gated on a BULL
// macro regime.
func TrendBuy(view *store.MarketView, predictedPctChange float64, regime Regime) bool {
	if regime != RegimeBull || view.SMA200 == nil || view.RSI14 == nil || view.VolumeSMA20 == nil {
		return false
	}
	return view.Close > *view.SMA200 &&
		*view.RSI14 >= trendRSIMin && *view.RSI14 <= trendRSIMax &&
		view.Volume > *view.VolumeSMA20 &&
		predictedPctChange > buyConviction
}
