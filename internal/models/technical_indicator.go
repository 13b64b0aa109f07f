package models

import (
	"time"
)

// TechnicalIndicator represents a row in the technical_indicators table,
// keyed like market_data so candles and indicators join on
// (symbol, timestamp, timeframe). Append-only from the pipeline's view.
type TechnicalIndicator struct {
	Symbol      string    `gorm:"column:symbol;size:16;primaryKey" json:"symbol"`
	Timestamp   time.Time `gorm:"column:timestamp;primaryKey" json:"timestamp"`
	Timeframe   string    `gorm:"column:timeframe;size:8;primaryKey;default:'5m'" json:"timeframe"`
	RSI14       *float64  `gorm:"column:rsi_14" json:"rsi_14"`
	SMA50       *float64  `gorm:"column:sma_50" json:"sma_50"`
	SMA200      *float64  `gorm:"column:sma_200" json:"sma_200"`
	LowerBB     *float64  `gorm:"column:lower_bb" json:"lower_bb"`
	VWAP        *float64  `gorm:"column:vwap" json:"vwap"`
	ATR14       *float64  `gorm:"column:atr_14" json:"atr_14"`
	VolumeSMA20 *float64  `gorm:"column:volume_sma_20" json:"volume_sma_20"`
}

func (TechnicalIndicator) TableName() string {
	return "technical_indicators"
}
