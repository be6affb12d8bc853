package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelBlue, "blue"},
		{LevelYellow, "yellow"},
		{LevelOrange, "orange"},
		{LevelRed, "red"},
		{Level(0), "unknown"},
		{Level(9), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		for _, l := range []Level{LevelBlue, LevelYellow, LevelOrange, LevelRed} {
			got, err := ParseLevel(l.String())
			require.NoError(t, err)
			assert.Equal(t, l, got)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := ParseLevel("purple")
		assert.Error(t, err)
	})
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, LevelBlue < LevelYellow)
	assert.True(t, LevelYellow < LevelOrange)
	assert.True(t, LevelOrange < LevelRed)
}

func TestDedupKeyString(t *testing.T) {
	start := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	key := DedupKey{Region: "xuancheng", Type: EventHeavyRain, WindowStart: start}

	t.Run("canonical form", func(t *testing.T) {
		assert.Equal(t, "xuancheng|heavy_rain|2026-07-14T09:00:00Z", key.String())
	})

	t.Run("timezone insensitive", func(t *testing.T) {
		shanghai := time.FixedZone("CST", 8*3600)
		local := DedupKey{Region: "xuancheng", Type: EventHeavyRain, WindowStart: start.In(shanghai)}
		assert.Equal(t, key.String(), local.String())
	})
}

func TestAlertID(t *testing.T) {
	key := DedupKey{
		Region:      "xuancheng",
		Type:        EventTyphoon,
		WindowStart: time.Date(2026, 8, 2, 15, 0, 0, 0, time.UTC),
	}

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, AlertID(key, LevelOrange), AlertID(key, LevelOrange))
	})

	t.Run("event type prefix", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(AlertID(key, LevelOrange), "typhoon-"))
	})

	t.Run("level changes the id", func(t *testing.T) {
		assert.NotEqual(t, AlertID(key, LevelOrange), AlertID(key, LevelRed))
	})

	t.Run("window changes the id", func(t *testing.T) {
		other := key
		other.WindowStart = key.WindowStart.Add(time.Hour)
		assert.NotEqual(t, AlertID(key, LevelRed), AlertID(other, LevelRed))
	})
}

func TestAlertDedupKey(t *testing.T) {
	start := time.Date(2026, 7, 14, 9, 0, 0, 0, time.UTC)
	a := Alert{Region: "xuanzhou", Type: EventHighTemp, WindowStart: start, Level: LevelYellow}
	assert.Equal(t, DedupKey{Region: "xuanzhou", Type: EventHighTemp, WindowStart: start}, a.DedupKey())
}

func TestEventTypeValid(t *testing.T) {
	for _, typ := range EventTypes {
		assert.True(t, typ.Valid(), "type %s", typ)
	}
	assert.False(t, EventType("earthquake").Valid())
	assert.False(t, EventType("").Valid())
}

func TestSetClock(t *testing.T) {
	t.Run("set custom clock", func(t *testing.T) {
		fixedTime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		mockClock := clockwork.NewFakeClockAt(fixedTime)

		SetClock(mockClock)
		assert.Equal(t, fixedTime, Now())

		SetClock(nil) // reset
	})

	t.Run("reset to real clock", func(t *testing.T) {
		mockClock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

		SetClock(mockClock)
		SetClock(nil)

		now := Now()
		assert.True(t, time.Since(now) < time.Second)
	})
}
