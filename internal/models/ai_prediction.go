package models

import (
	"time"
)

// AIPrediction represents a row in the ai_predictions table: the ensemble price
// forecast for a symbol at a point in time. EnsemblePctChange is the predicted
// move as a fraction of the current price; the strategies read it as a
// conviction gate.
type AIPrediction struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	Symbol            string    `gorm:"column:symbol;size:16;not null;uniqueIndex:idx_prediction_symbol_ts" json:"symbol"`
	Timestamp         time.Time `gorm:"column:timestamp;not null;uniqueIndex:idx_prediction_symbol_ts" json:"timestamp"`
	CurrentPrice      float64   `gorm:"column:current_price" json:"current_price"`
	EnsemblePrice     float64   `gorm:"column:ensemble_predicted_price" json:"ensemble_predicted_price"`
	EnsemblePctChange float64   `gorm:"column:ensemble_pct_change" json:"ensemble_pct_change"`
}

func (AIPrediction) TableName() string {
	return "ai_predictions"
}
