package models

import (
	"time"
)

// SystemLog represents a record in the system_logs table. Stages mirror
// significant events here so the operator API can surface them.
type SystemLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	Timestamp time.Time `gorm:"column:timestamp;autoCreateTime" json:"timestamp"`
	Service   string    `gorm:"column:service;size:32;not null" json:"service"`
	Level     string    `gorm:"column:level;size:10;not null" json:"level"` // INFO, WARNING, ERROR, FATAL
	Message   string    `gorm:"column:message;type:text;not null" json:"message"`
}

func (SystemLog) TableName() string {
	return "system_logs"
}

// SystemConfig is a key/value row in the system_config table. Runtime-tunable
// switches (sleep_mode) live here so they can change without a restart.
type SystemConfig struct {
	Key       string    `gorm:"column:key;size:64;primaryKey" json:"key"`
	Value     string    `gorm:"column:value;type:text" json:"value"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (SystemConfig) TableName() string {
	return "system_config"
}

// Well-known system_config keys and sleep_mode values.
const (
	ConfigKeySleepMode = "sleep_mode"

	SleepModeAuto       = "AUTO"
	SleepModeForceAwake = "FORCE_AWAKE"
	SleepModeForceSleep = "FORCE_SLEEP"
)
