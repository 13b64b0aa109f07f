package models

import (
	"time"
)

// Signal lifecycle statuses. PENDING, SIZED and SUBMITTED are the active states;
// everything else is terminal and immutable once reached.
const (
	StatusPending        = "PENDING"
	StatusSized          = "SIZED"
	StatusSubmitted      = "SUBMITTED"
	StatusExecuted       = "EXECUTED"
	StatusExecutedNoStop = "EXECUTED_NO_STOP"
	StatusRejected       = "REJECTED"
	StatusFailed         = "FAILED"
	StatusExpired        = "EXPIRED"

	// Claim markers. A row sits in one of these only between a claim and its
	// commit or release. It still counts as open for the (symbol, side)
	// uniqueness invariant.
	StatusClaimedPending   = "CLAIMED_PENDING"
	StatusClaimedSized     = "CLAIMED_SIZED"
	StatusClaimedSubmitted = "CLAIMED_SUBMITTED"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Strategy tags carried on a signal. The executor picks the trailing stop
// distance tier from these.
const (
	StrategyMeanReversion = "MEAN_REVERSION"
	StrategyVwapScalp     = "VWAP_SCALP"
	StrategyDeepValueBuy  = "DEEP_VALUE_BUY"
	StrategyTrendBuy      = "TREND_BUY"
)

// Signal represents a record in the trade_signals table. It is the only row type
// the pipeline stages write to; producers append, stages advance status.
type Signal struct {
	ID             uint       `gorm:"primarykey" json:"id"`
	Symbol         string     `gorm:"column:symbol;size:16;not null;index" json:"symbol"`
	Side           string     `gorm:"column:side;size:4;not null" json:"side"`
	Strategy       string     `gorm:"column:strategy;size:32;not null" json:"strategy"`
	Status         string     `gorm:"column:status;size:32;not null;index" json:"status"`
	EntryPriceHint float64    `gorm:"column:entry_price_hint" json:"entry_price_hint"`
	ATR            *float64   `gorm:"column:atr" json:"atr"`
	Size           *float64   `gorm:"column:size" json:"size"`
	StopLossPrice  *float64   `gorm:"column:stop_loss_price" json:"stop_loss_price"`
	TakeProfitPrice *float64  `gorm:"column:take_profit_price" json:"take_profit_price"`
	TrailPrice     *float64   `gorm:"column:trail_price" json:"trail_price"`
	BrokerOrderID  *string    `gorm:"column:broker_order_id;size:64" json:"broker_order_id"`
	FillPrice      *float64   `gorm:"column:fill_price" json:"fill_price"`
	LastError      string     `gorm:"column:last_error;type:text;default:''" json:"last_error"`
	ClaimedBy      string     `gorm:"column:claimed_by;size:64;default:''" json:"claimed_by"`
	ClaimedAt      *time.Time `gorm:"column:claimed_at" json:"claimed_at"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	Version        int64      `gorm:"column:version;not null;default:1" json:"version"`
}

func (Signal) TableName() string {
	return "trade_signals"
}

// IsTerminal reports whether a status can never change again.
func IsTerminal(status string) bool {
	switch status {
	case StatusExecuted, StatusExecutedNoStop, StatusRejected, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// OpenStatuses lists every status that counts as an open signal for the
// (symbol, side) uniqueness check, claim markers included.
func OpenStatuses() []string {
	return []string{
		StatusPending, StatusSized, StatusSubmitted,
		StatusClaimedPending, StatusClaimedSized, StatusClaimedSubmitted,
	}
}

// ClaimedStatus maps an active status to its claim marker. Empty for statuses
// that cannot be claimed.
func ClaimedStatus(status string) string {
	switch status {
	case StatusPending:
		return StatusClaimedPending
	case StatusSized:
		return StatusClaimedSized
	case StatusSubmitted:
		return StatusClaimedSubmitted
	}
	return ""
}

// PreClaimStatus is the inverse of ClaimedStatus, used when releasing a stale
// claim back to its pre-claim state.
func PreClaimStatus(claimed string) string {
	switch claimed {
	case StatusClaimedPending:
		return StatusPending
	case StatusClaimedSized:
		return StatusSized
	case StatusClaimedSubmitted:
		return StatusSubmitted
	}
	return ""
}
