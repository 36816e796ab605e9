package warehouse

import (
	"github.com/shopspring/decimal"
)

// SalesFact is one aggregated sales measurement. The natural key is
// (time, product, customer[, channel]); the engine guarantees at most one row
// per natural key no matter how many times a window is re-extracted. Facts are
// write-once and never updated.
type SalesFact struct {
	ID           int64           `gorm:"primaryKey;autoIncrement"`
	TimeID       int64           `gorm:"not null;uniqueIndex:idx_fact_natural,priority:1"`
	ProductID    int64           `gorm:"not null;uniqueIndex:idx_fact_natural,priority:2"`
	CustomerID   int64           `gorm:"not null;uniqueIndex:idx_fact_natural,priority:3"`
	ChannelID    *int64          `gorm:"uniqueIndex:idx_fact_natural,priority:4"`
	Quantity     int64           `gorm:"not null"`
	UnitPriceUSD decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TotalUSD     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (SalesFact) TableName() string {
	return "fact_sales"
}

// FactKey is the natural key of a sales fact. ChannelID is nil when channel
// is excluded from the aggregation key.
type FactKey struct {
	TimeID     int64
	ProductID  int64
	CustomerID int64
	ChannelID  *int64
}

// Key returns the fact's natural key
func (f *SalesFact) Key() FactKey {
	return FactKey{
		TimeID:     f.TimeID,
		ProductID:  f.ProductID,
		CustomerID: f.CustomerID,
		ChannelID:  f.ChannelID,
	}
}
