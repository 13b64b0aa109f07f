package models

import (
	"time"
)

// ExecutedTrade represents a row in the executed_trades audit table, appended
// by the reconciler when a broker order fills. Never updated or deleted.
type ExecutedTrade struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	SignalID  uint      `gorm:"column:signal_id;not null;index" json:"signal_id"`
	Symbol    string    `gorm:"column:symbol;size:16;not null" json:"symbol"`
	Timestamp time.Time `gorm:"column:timestamp;not null" json:"timestamp"`
	Price     float64   `gorm:"column:price" json:"price"`
	Qty       float64   `gorm:"column:qty" json:"qty"`
	Side      string    `gorm:"column:side;size:4" json:"side"`
	Strategy  string    `gorm:"column:strategy;size:32;default:''" json:"strategy"`
}

func (ExecutedTrade) TableName() string {
	return "executed_trades"
}
