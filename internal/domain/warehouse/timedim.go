package warehouse

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeDim is the time dimension, one row per calendar date. FxRate holds the
// exchange rate for that date expressed as local currency units per one
// reporting currency unit; it is nullable because the rate feed may lag the
// sales data.
type TimeDim struct {
	ID          int64            `gorm:"primaryKey;autoIncrement"`
	Date        time.Time        `gorm:"type:date;not null;uniqueIndex"`
	Year        int              `gorm:"not null"`
	Month       int              `gorm:"not null"`
	Day         int              `gorm:"not null"`
	ISOWeek     int              `gorm:"not null"`
	WeekdayName string           `gorm:"type:varchar(10);not null"`
	FxRate      *decimal.Decimal `gorm:"type:decimal(18,6)"`
}

// TableName returns the table name for GORM
func (TimeDim) TableName() string {
	return "dim_time"
}

// NewTimeDim creates a time dimension row for the given date, deriving the
// calendar attributes. A nil rate means the fx feed has not supplied a value
// for this date yet; readers fall back to 1.0.
func NewTimeDim(date time.Time, rate *decimal.Decimal) *TimeDim {
	day := Midnight(date)
	_, week := day.ISOWeek()
	return &TimeDim{
		Date:        day,
		Year:        day.Year(),
		Month:       int(day.Month()),
		Day:         day.Day(),
		ISOWeek:     week,
		WeekdayName: day.Weekday().String(),
		FxRate:      rate,
	}
}

// Rate returns the stored fx rate, defaulting to 1.0 when absent
func (t *TimeDim) Rate() decimal.Decimal {
	if t.FxRate == nil {
		return decimal.NewFromInt(1)
	}
	return *t.FxRate
}

// Midnight truncates a timestamp to its calendar date in UTC. All date
// comparisons in the warehouse go through this so that facts recorded with
// timestamps group onto the right day.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
