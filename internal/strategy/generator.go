package strategy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quantcontrol/internal/models"
	"quantcontrol/internal/store"

	logger "github.com/sirupsen/logrus"
)

const serviceName = "SignalGenerator"

// indexSymbol drives the macro regime check.
const indexSymbol = "SPY"

// SignalStore is the slice of the durable store the generator needs: market
// reads plus signal insertion.
type SignalStore interface {
	LatestMarketView(symbol, timeframe string) (*store.MarketView, error)
	AvgSentiment(symbol string, since time.Time) (avg float64, count int64, err error)
	LatestPrediction(symbol string) (*models.AIPrediction, error)
	InsertSignal(sig *models.Signal) error
	LogEvent(service, level, message string)
}

// Config holds the generator's runtime settings.
type Config struct {
	Symbols         []string
	KingsList       []string
	SentimentWindow time.Duration
	Timeframe       string
}

// Generator reads the latest snapshots per symbol, evaluates the strategy
// tiers and inserts at most one PENDING signal per qualifying symbol per
// cycle. An existing open signal suppresses new ones for that (symbol, side).
type Generator struct {
	store SignalStore
	cfg   Config
	kings map[string]bool
}

func NewGenerator(st SignalStore, cfg Config) *Generator {
	if cfg.Timeframe == "" {
		cfg.Timeframe = "5m"
	}
	kings := make(map[string]bool, len(cfg.KingsList))
	for _, sym := range cfg.KingsList {
		kings[sym] = true
	}
	return &Generator{store: st, cfg: cfg, kings: kings}
}

// RunCycle evaluates every configured symbol once.
func (g *Generator) RunCycle(ctx context.Context) error {
	regime := g.macroRegime()

	for _, symbol := range g.cfg.Symbols {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := g.evaluateSymbol(symbol, regime); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) macroRegime() Regime {
	view, err := g.store.LatestMarketView(indexSymbol, g.cfg.Timeframe)
	if err != nil {
		logger.Warnf("Macro regime check failed, assuming BULL: %v", err)
		return RegimeBull
	}
	return RegimeFromView(view)
}

func (g *Generator) evaluateSymbol(symbol string, regime Regime) error {
	view, err := g.store.LatestMarketView(symbol, g.cfg.Timeframe)
	if err != nil {
		return fmt.Errorf("market view for %s: %w", symbol, err)
	}
	if view == nil {
		return nil
	}

	predictedPct := 0.0
	pred, err := g.store.LatestPrediction(symbol)
	if err != nil {
		return fmt.Errorf("prediction for %s: %w", symbol, err)
	}
	if pred != nil {
		predictedPct = pred.EnsemblePctChange
	}

	strategyTag := g.pickStrategy(symbol, view, predictedPct, regime)
	if strategyTag == "" {
		return nil
	}

	sig := &models.Signal{
		Symbol:         symbol,
		Side:           models.SideBuy,
		Strategy:       strategyTag,
		EntryPriceHint: view.Close,
		ATR:            view.ATR14,
	}
	if err := g.store.InsertSignal(sig); err != nil {
		if errors.Is(err, store.ErrOpenSignalExists) {
			// Normal suppression: one open signal per (symbol, side).
			logger.Debugf("Open signal exists for %s/%s, suppressing %s", symbol, models.SideBuy, strategyTag)
			return nil
		}
		return fmt.Errorf("insert signal for %s: %w", symbol, err)
	}

	msg := fmt.Sprintf("Generated %s signal %d for %s at %.2f", strategyTag, sig.ID, symbol, view.Close)
	logger.WithField("signal_id", sig.ID).Info(msg)
	g.store.LogEvent(serviceName, "INFO", msg)
	return nil
}

// pickStrategy evaluates tiers in priority order and returns the first match.
func (g *Generator) pickStrategy(symbol string, view *store.MarketView, predictedPct float64, regime Regime) string {
	if DeepValueBuy(view, predictedPct, g.kings[symbol]) {
		return models.StrategyDeepValueBuy
	}
	if VwapScalp(view, predictedPct) {
		return models.StrategyVwapScalp
	}
	if TrendBuy(view, predictedPct, regime) {
		return models.StrategyTrendBuy
	}
	if MeanReversionSetup(view) {
		since := time.Now().UTC().Add(-g.cfg.SentimentWindow)
		avg, count, err := g.store.AvgSentiment(symbol, since)
		if err != nil {
			logger.Warnf("Sentiment read failed for %s: %v", symbol, err)
			return ""
		}
		if count > 0 && avg > 0 {
			return models.StrategyMeanReversion
		}
	}
	return ""
}
