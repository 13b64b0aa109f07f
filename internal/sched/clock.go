// Package sched runs pipeline stages on polling intervals and decides how
// long to sleep between cycles based on market hours and the runtime sleep
// mode switch.
package sched

import (
	"time"

	"quantcontrol/internal/models"

	logger "github.com/sirupsen/logrus"
)

const (
	marketOpenHour    = 9
	marketOpenMinute  = 30
	marketCloseHour   = 16
	marketCloseMinute = 0
)

// ConfigReader reads runtime config keys from the store.
type ConfigReader interface {
	GetConfigValue(key, fallback string) string
}

// Clock decides whether the pipeline should run at its active cadence or idle
// at the passive one. The sleep_mode config key overrides the market calendar.
type Clock struct {
	store ConfigReader
	loc   *time.Location
}

func NewClock(store ConfigReader) *Clock {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		// UTC keeps the pipeline running; only the calendar check degrades.
		logger.Warnf("Could not load market timezone, using UTC: %v", err)
		loc = time.UTC
	}
	return &Clock{store: store, loc: loc}
}

// MarketOpenAt reports whether the US equity market is in regular hours at t
// (weekdays 09:30–16:00 exchange time, close exclusive). Holidays are not
// modeled; a closed-market day just runs the passive cadence.
func (c *Clock) MarketOpenAt(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	open := time.Date(local.Year(), local.Month(), local.Day(), marketOpenHour, marketOpenMinute, 0, 0, c.loc)
	close := time.Date(local.Year(), local.Month(), local.Day(), marketCloseHour, marketCloseMinute, 0, 0, c.loc)
	return !local.Before(open) && local.Before(close)
}

// Interval picks the sleep duration for the next cycle: active during market
// hours (or FORCE_AWAKE), passive otherwise (or FORCE_SLEEP).
func (c *Clock) Interval(active, passive time.Duration) time.Duration {
	mode := models.SleepModeAuto
	if c.store != nil {
		mode = c.store.GetConfigValue(models.ConfigKeySleepMode, models.SleepModeAuto)
	}

	switch mode {
	case models.SleepModeForceAwake:
		return active
	case models.SleepModeForceSleep:
		return passive
	}

	if c.MarketOpenAt(time.Now()) {
		return active
	}
	return passive
}
