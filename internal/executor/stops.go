package executor

import (
	"math"

	"quantcontrol/internal/models"
)

// trailPercentFallback is used when a signal carries no ATR.
const trailPercentFallback = 2.0

// TrailMultiplier maps a strategy tag to its ATR trailing-stop multiplier.
// Momentum scalps run a tight stop, trend rides a loose one.
func TrailMultiplier(strategy string) float64 {
	switch strategy {
	case models.StrategyVwapScalp:
		return 1.5
	case models.StrategyTrendBuy:
		return 3.0
	case models.StrategyDeepValueBuy:
		return 2.0
	default:
		return 2.0
	}
}

// TrailDistance computes the absolute trailing distance for a signal, or
// (0, false) when the signal has no usable ATR and the percent fallback
// applies.
func TrailDistance(sig *models.Signal) (float64, bool) {
	if sig.ATR == nil || *sig.ATR <= 0 {
		return 0, false
	}
	distance := TrailMultiplier(sig.Strategy) * *sig.ATR
	return math.Round(distance*100) / 100, true
}
