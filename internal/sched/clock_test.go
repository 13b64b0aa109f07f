package sched

import (
	"testing"
	"time"

	"quantcontrol/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfigReader struct {
	values map[string]string
}

func (f *fakeConfigReader) GetConfigValue(key, fallback string) string {
	if v, ok := f.values[key]; ok {
		return v
	}
	return fallback
}

func TestMarketOpenAt(t *testing.T) {
	clock := NewClock(nil)
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// A Wednesday.
	day := time.Date(2024, time.March, 6, 0, 0, 0, 0, ny)
	at := func(hour, min int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, ny)
	}

	t.Run("Regular Hours", func(t *testing.T) {
		assert.False(t, clock.MarketOpenAt(at(9, 29)))
		assert.True(t, clock.MarketOpenAt(at(9, 30)), "open is inclusive")
		assert.True(t, clock.MarketOpenAt(at(12, 0)))
		assert.True(t, clock.MarketOpenAt(at(15, 59)))
		assert.False(t, clock.MarketOpenAt(at(16, 0)), "close is exclusive")
		assert.False(t, clock.MarketOpenAt(at(20, 0)))
	})

	t.Run("Weekends Closed", func(t *testing.T) {
		saturday := time.Date(2024, time.March, 9, 12, 0, 0, 0, ny)
		sunday := time.Date(2024, time.March, 10, 12, 0, 0, 0, ny)
		assert.False(t, clock.MarketOpenAt(saturday))
		assert.False(t, clock.MarketOpenAt(sunday))
	})

	t.Run("Converts From Other Zones", func(t *testing.T) {
		// 18:00 UTC in March is 13:00 New York.
		utcNoon := time.Date(2024, time.March, 6, 18, 0, 0, 0, time.UTC)
		assert.True(t, clock.MarketOpenAt(utcNoon))
	})
}

func TestClockInterval(t *testing.T) {
	active := 15 * time.Second
	passive := time.Hour

	t.Run("Force Awake", func(t *testing.T) {
		clock := NewClock(&fakeConfigReader{values: map[string]string{
			models.ConfigKeySleepMode: models.SleepModeForceAwake,
		}})
		assert.Equal(t, active, clock.Interval(active, passive))
	})

	t.Run("Force Sleep", func(t *testing.T) {
		clock := NewClock(&fakeConfigReader{values: map[string]string{
			models.ConfigKeySleepMode: models.SleepModeForceSleep,
		}})
		assert.Equal(t, passive, clock.Interval(active, passive))
	})

	t.Run("Auto Follows Calendar", func(t *testing.T) {
		clock := NewClock(&fakeConfigReader{})
		want := passive
		if clock.MarketOpenAt(time.Now()) {
			want = active
		}
		assert.Equal(t, want, clock.Interval(active, passive))
	})
}
