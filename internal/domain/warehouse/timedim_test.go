package warehouse

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNewTimeDim_DerivesCalendarFields(t *testing.T) {
	// 2026-01-02 is a Friday in ISO week 1
	td := NewTimeDim(time.Date(2026, 1, 2, 15, 30, 0, 0, time.UTC), nil)

	assert.Equal(t, 2026, td.Year)
	assert.Equal(t, 1, td.Month)
	assert.Equal(t, 2, td.Day)
	assert.Equal(t, 1, td.ISOWeek)
	assert.Equal(t, "Friday", td.WeekdayName)
	assert.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), td.Date)
}

func TestTimeDim_RateDefaultsToOne(t *testing.T) {
	td := NewTimeDim(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), nil)
	assert.True(t, td.Rate().Equal(decimal.NewFromInt(1)))

	rate := decimal.NewFromFloat(512.34)
	td.FxRate = &rate
	assert.True(t, td.Rate().Equal(rate))
}

func TestMidnight(t *testing.T) {
	stamp := time.Date(2026, 7, 15, 23, 59, 59, 123, time.FixedZone("X", 3600))
	got := Midnight(stamp)

	assert.Equal(t, time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC), got)
}
