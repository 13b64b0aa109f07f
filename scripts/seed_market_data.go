// Seeds market_data, technical_indicators, ai_predictions and sentiment_scores
// with synthetic rows so the pipeline can be exercised locally without the
// external data producers.
//
// Usage: go run scripts/seed_market_data.go -symbols NVDA,AAPL -bars 50
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"quantcontrol/internal/models"
	"quantcontrol/pkg/config"

	logger "github.com/sirupsen/logrus"
)

func main() {
	symbolsFlag := flag.String("symbols", "NVDA,AAPL,MSFT,SPY", "comma separated symbols to seed")
	bars := flag.Int("bars", 50, "number of 5m candles per symbol")
	basePrice := flag.Float64("price", 100.0, "starting price for the random walk")
	dip := flag.Bool("dip", false, "end each series in an oversold dip so the generator fires")
	flag.Parse()

	config.InitDB()
	db := config.DB

	symbols := strings.Split(*symbolsFlag, ",")
	now := time.Now().UTC().Truncate(5 * time.Minute)

	for _, symbol := range symbols {
		symbol = strings.TrimSpace(symbol)
		price := *basePrice

		for i := *bars - 1; i >= 0; i-- {
			ts := now.Add(-time.Duration(i) * 5 * time.Minute)
			drift := (rand.Float64() - 0.5) * price * 0.004
			if *dip && i < 5 {
				drift = -price * 0.01
			}
			price += drift

			candle := models.MarketData{
				Symbol:    symbol,
				Timestamp: ts,
				Timeframe: "5m",
				Open:      price - drift,
				High:      price + price*0.002,
				Low:       price - price*0.002,
				Close:     price,
				Volume:    1000 + rand.Float64()*2000,
			}
			if err := db.Save(&candle).Error; err != nil {
				logger.Fatalf("seed candle for %s: %v", symbol, err)
			}

			rsi := 40 + rand.Float64()*20
			if *dip && i == 0 {
				rsi = 25
			}
			sma50 := price * 1.01
			sma200 := price * 1.02
			lowerBB := price * 0.99
			vwap := price * 1.001
			atr := price * 0.015
			volSMA := 1500.0
			indicator := models.TechnicalIndicator{
				Symbol:      symbol,
				Timestamp:   ts,
				Timeframe:   "5m",
				RSI14:       &rsi,
				SMA50:       &sma50,
				SMA200:      &sma200,
				LowerBB:     &lowerBB,
				VWAP:        &vwap,
				ATR14:       &atr,
				VolumeSMA20: &volSMA,
			}
			if err := db.Save(&indicator).Error; err != nil {
				logger.Fatalf("seed indicator for %s: %v", symbol, err)
			}
		}

		pred := models.AIPrediction{
			Symbol:            symbol,
			Timestamp:         now,
			CurrentPrice:      price,
			EnsemblePrice:     price * 1.01,
			EnsemblePctChange: 0.01,
		}
		if err := db.Save(&pred).Error; err != nil {
			logger.Fatalf("seed prediction for %s: %v", symbol, err)
		}

		sentiment := models.SentimentScore{
			Symbol:    symbol,
			Timestamp: now,
			Score:     0.4,
			Headline:  fmt.Sprintf("%s beats expectations", symbol),
		}
		if err := db.Create(&sentiment).Error; err != nil {
			logger.Fatalf("seed sentiment for %s: %v", symbol, err)
		}

		logger.Infof("Seeded %d bars for %s, last close %.2f", *bars, symbol, price)
	}
}
