package etl

import (
	"fmt"
	"sort"

	"github.com/salesdw/etl/internal/domain/etl"
	"github.com/salesdw/etl/internal/domain/warehouse"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Aggregator collapses raw line items into one pre-fact row per
// (customer, product, day[, channel]) group. Channel inclusion and line
// discount application are configuration choices, not connector behavior.
type Aggregator struct {
	includeChannel bool
	applyDiscount  bool
	logger         *zap.Logger
}

// NewAggregator creates an Aggregator
func NewAggregator(includeChannel, applyDiscount bool, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		includeChannel: includeChannel,
		applyDiscount:  applyDiscount,
		logger:         logger,
	}
}

// IncludesChannel reports whether channel is part of the grouping key
func (a *Aggregator) IncludesChannel() bool {
	return a.includeChannel
}

type group struct {
	pre    etl.PreFact
	prices []decimal.Decimal
}

// Aggregate groups the window's line items into pre-facts. Malformed rows are
// skipped and counted; the output is sorted by grouping key so repeated runs
// over the same input produce identical sequences.
func (a *Aggregator) Aggregate(items []etl.RawLineItem) ([]etl.PreFact, int) {
	groups := make(map[string]*group)
	skipped := 0

	for _, item := range items {
		if err := a.accumulate(groups, item); err != nil {
			skipped++
			a.logger.Warn("line item skipped", zap.Error(err))
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]etl.PreFact, 0, len(groups))
	for _, k := range keys {
		g := groups[k]
		g.pre.UnitPriceNative = mean(g.prices)
		out = append(out, g.pre)
	}
	return out, skipped
}

func (a *Aggregator) accumulate(groups map[string]*group, item etl.RawLineItem) error {
	if item.OrderDate.IsZero() {
		return &etl.RowError{Reason: "missing order date"}
	}
	if item.Customer.Email == "" {
		return &etl.RowError{Reason: "missing customer email"}
	}
	strongest, ok := item.Product.Strongest()
	if !ok {
		return &etl.RowError{Reason: "missing product identifier"}
	}

	price, err := etl.ParseAmount(item.UnitPrice)
	if err != nil {
		return err
	}

	lineTotal := price.Mul(decimal.NewFromInt(item.Quantity))
	if a.applyDiscount && item.DiscountPct != "" {
		discount, err := etl.ParsePercent(item.DiscountPct)
		if err != nil {
			return err
		}
		factor := decimal.NewFromInt(1).Sub(discount.Div(decimal.NewFromInt(100)))
		lineTotal = lineTotal.Mul(factor)
	}

	day := warehouse.Midnight(item.OrderDate)
	key := fmt.Sprintf("%s|%s|%s", item.Customer.Email, strongest, day.Format("2006-01-02"))
	channel := item.Channel
	if a.includeChannel {
		key += "|" + channel
	} else {
		channel = ""
	}

	g, exists := groups[key]
	if !exists {
		g = &group{pre: etl.PreFact{
			Customer: item.Customer,
			Product:  item.Product,
			Day:      day,
			Channel:  channel,
			Currency: item.Currency,
		}}
		groups[key] = g
	}

	g.pre.Quantity += item.Quantity
	g.pre.TotalNative = g.pre.TotalNative.Add(lineTotal)
	g.pre.LineCount++
	g.prices = append(g.prices, price)
	return nil
}

// mean is the arithmetic mean of the group's unit prices. Fixed to the
// arithmetic mean so aggregation is deterministic across runs.
func mean(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	return decimal.Avg(prices[0], prices[1:]...)
}
