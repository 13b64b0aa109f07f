package models

import (
	"time"
)

// MarketData represents one OHLCV candle in the market_data table. Written by
// the external harvester, read-only for the pipeline.
type MarketData struct {
	Symbol    string    `gorm:"column:symbol;size:16;primaryKey" json:"symbol"`
	Timestamp time.Time `gorm:"column:timestamp;primaryKey" json:"timestamp"`
	Timeframe string    `gorm:"column:timeframe;size:8;primaryKey;default:'5m'" json:"timeframe"`
	Open      float64   `gorm:"column:open" json:"open"`
	High      float64   `gorm:"column:high" json:"high"`
	Low       float64   `gorm:"column:low" json:"low"`
	Close     float64   `gorm:"column:close" json:"close"`
	Volume    float64   `gorm:"column:volume" json:"volume"`
}

func (MarketData) TableName() string {
	return "market_data"
}
