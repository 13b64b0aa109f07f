package models

import (
	"time"
)

// SentimentScore represents one scored headline in the sentiment_scores table.
// Score is in [-1, 1]. Written by the external sentiment engine.
type SentimentScore struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Symbol    string    `gorm:"column:symbol;size:16;not null;index:idx_sentiment_symbol_ts" json:"symbol"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index:idx_sentiment_symbol_ts" json:"timestamp"`
	Score     float64   `gorm:"column:score" json:"score"`
	Headline  string    `gorm:"column:headline;type:text;default:''" json:"headline"`
}

func (SentimentScore) TableName() string {
	return "sentiment_scores"
}
