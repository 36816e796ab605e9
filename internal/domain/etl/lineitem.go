package etl

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductRef carries the product identifiers a source system knows about.
// Sources rarely have all three; the resolver works with whichever are
// present, preferring them in the order NativeSKU > AltCode > SourceCode.
type ProductRef struct {
	NativeSKU  string
	AltCode    string
	SourceCode string
	Name       string
	Category   string
}

// Strongest returns the highest-priority identifier present
func (r ProductRef) Strongest() (string, bool) {
	switch {
	case r.NativeSKU != "":
		return r.NativeSKU, true
	case r.AltCode != "":
		return r.AltCode, true
	case r.SourceCode != "":
		return r.SourceCode, true
	default:
		return "", false
	}
}

// CustomerInfo carries the customer attributes a source row provides,
// enough to get-or-create the customer dimension
type CustomerInfo struct {
	Email        string
	Name         string
	Gender       string
	Country      string
	RegisteredAt *time.Time
}

// RawLineItem is one order line as extracted from a source system. Monetary
// fields stay as the raw source strings; parsing is deferred to the
// aggregator so malformed values become row errors instead of extraction
// failures.
type RawLineItem struct {
	Customer    CustomerInfo
	Product     ProductRef
	OrderDate   time.Time
	Channel     string
	Currency    string
	Quantity    int64
	UnitPrice   string
	DiscountPct string
}

// PreFact is one aggregated group of line items: the unit the currency
// normalizer and fact loader operate on. Monetary amounts are still in the
// source currency.
type PreFact struct {
	Customer        CustomerInfo
	Product         ProductRef
	Day             time.Time
	Channel         string
	Currency        string
	Quantity        int64
	UnitPriceNative decimal.Decimal
	TotalNative     decimal.Decimal
	LineCount       int
}

// NormalizedFact is a PreFact with its monetary fields converted to the
// reporting currency, ready for dimension resolution and loading
type NormalizedFact struct {
	PreFact
	UnitPriceUSD decimal.Decimal
	TotalUSD     decimal.Decimal
}
