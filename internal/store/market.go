package store

import (
	"database/sql"
	"errors"
	"time"

	"quantcontrol/internal/models"

	"gorm.io/gorm"
)

// MarketView is the latest candle joined with its indicator snapshot for one
// symbol, which is all the strategies need to evaluate a predicate.
type MarketView struct {
	Symbol      string    `gorm:"column:symbol"`
	Timestamp   time.Time `gorm:"column:timestamp"`
	Close       float64   `gorm:"column:close"`
	Volume      float64   `gorm:"column:volume"`
	RSI14       *float64  `gorm:"column:rsi_14"`
	SMA50       *float64  `gorm:"column:sma_50"`
	SMA200      *float64  `gorm:"column:sma_200"`
	LowerBB     *float64  `gorm:"column:lower_bb"`
	VWAP        *float64  `gorm:"column:vwap"`
	ATR14       *float64  `gorm:"column:atr_14"`
	VolumeSMA20 *float64  `gorm:"column:volume_sma_20"`
}

// LatestMarketView returns the most recent joined candle/indicator row for a
// symbol and timeframe, or (nil, nil) when the producers have not written one.
func (s *Store) LatestMarketView(symbol, timeframe string) (*MarketView, error) {
	var view MarketView
	res := s.db.
		Table("technical_indicators AS t").
		Select("t.symbol, t.timestamp, m.close, m.volume, t.rsi_14, t.sma_50, t.sma_200, t.lower_bb, t.vwap, t.atr_14, t.volume_sma_20").
		Joins("JOIN market_data m ON m.symbol = t.symbol AND m.timestamp = t.timestamp AND m.timeframe = t.timeframe").
		Where("t.symbol = ? AND t.timeframe = ?", symbol, timeframe).
		Order("t.timestamp DESC").
		Limit(1).
		Scan(&view)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &view, nil
}

// LatestClose returns the most recent close price for a symbol regardless of
// indicator availability. Used by the sizer as the entry price fallback.
func (s *Store) LatestClose(symbol, timeframe string) (float64, error) {
	var candle models.MarketData
	err := s.db.
		Where("symbol = ? AND timeframe = ?", symbol, timeframe).
		Order("timestamp DESC").
		First(&candle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return candle.Close, nil
}

// AvgSentiment averages headline scores for a symbol since the given time.
// count is zero when no headlines were scored in the window.
func (s *Store) AvgSentiment(symbol string, since time.Time) (avg float64, count int64, err error) {
	var row struct {
		Avg sql.NullFloat64 `gorm:"column:avg"`
		Cnt int64           `gorm:"column:cnt"`
	}
	err = s.db.Model(&models.SentimentScore{}).
		Select("AVG(score) AS avg, COUNT(*) AS cnt").
		Where("symbol = ? AND timestamp > ?", symbol, since).
		Scan(&row).Error
	if err != nil {
		return 0, 0, err
	}
	if !row.Avg.Valid {
		return 0, row.Cnt, nil
	}
	return row.Avg.Float64, row.Cnt, nil
}

// LatestPrediction returns the most recent ensemble forecast for a symbol, or
// (nil, nil) when none exists.
func (s *Store) LatestPrediction(symbol string) (*models.AIPrediction, error) {
	var pred models.AIPrediction
	err := s.db.
		Where("symbol = ?", symbol).
		Order("timestamp DESC").
		First(&pred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &pred, nil
}
