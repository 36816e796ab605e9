package etl

import (
	"testing"
	"time"

	"github.com/salesdw/etl/internal/domain/etl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func lineItem(email, sku string, day time.Time, qty int64, price string) etl.RawLineItem {
	return etl.RawLineItem{
		Customer:  etl.CustomerInfo{Email: email, Name: "Customer"},
		Product:   etl.ProductRef{NativeSKU: sku, Name: "Product"},
		OrderDate: day,
		Channel:   "store",
		Currency:  "USD",
		Quantity:  qty,
		UnitPrice: price,
	}
}

func TestAggregate_SumsSameGroup(t *testing.T) {
	day := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	items := []etl.RawLineItem{
		lineItem("a@x.com", "SKU-1", day, 3, "10.00"),
		lineItem("a@x.com", "SKU-1", day.Add(2*time.Hour), 5, "10.00"),
	}

	agg := NewAggregator(true, true, zap.NewNop())
	pre, skipped := agg.Aggregate(items)

	require.Len(t, pre, 1)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, int64(8), pre[0].Quantity)
	assert.Equal(t, "80", pre[0].TotalNative.String())
	assert.Equal(t, "10", pre[0].UnitPriceNative.String())
	assert.Equal(t, 2, pre[0].LineCount)
}

func TestAggregate_UnitPriceIsMean(t *testing.T) {
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	items := []etl.RawLineItem{
		lineItem("a@x.com", "SKU-1", day, 1, "10.00"),
		lineItem("a@x.com", "SKU-1", day, 1, "20.00"),
	}

	agg := NewAggregator(true, true, zap.NewNop())
	pre, _ := agg.Aggregate(items)

	require.Len(t, pre, 1)
	assert.Equal(t, "15", pre[0].UnitPriceNative.String())
}

func TestAggregate_GroupsSplitByDayAndProduct(t *testing.T) {
	day1 := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)
	items := []etl.RawLineItem{
		lineItem("a@x.com", "SKU-1", day1, 1, "10.00"),
		lineItem("a@x.com", "SKU-2", day1, 1, "10.00"),
		lineItem("a@x.com", "SKU-1", day2, 1, "10.00"),
	}

	agg := NewAggregator(true, true, zap.NewNop())
	pre, _ := agg.Aggregate(items)

	assert.Len(t, pre, 3)
}

func TestAggregate_ChannelInKey(t *testing.T) {
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	web := lineItem("a@x.com", "SKU-1", day, 1, "10.00")
	web.Channel = "web"
	store := lineItem("a@x.com", "SKU-1", day, 1, "10.00")

	withChannel := NewAggregator(true, true, zap.NewNop())
	pre, _ := withChannel.Aggregate([]etl.RawLineItem{web, store})
	assert.Len(t, pre, 2)

	withoutChannel := NewAggregator(false, true, zap.NewNop())
	pre, _ = withoutChannel.Aggregate([]etl.RawLineItem{web, store})
	require.Len(t, pre, 1)
	assert.Equal(t, int64(2), pre[0].Quantity)
	assert.Empty(t, pre[0].Channel)
}

func TestAggregate_AppliesDiscount(t *testing.T) {
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	item := lineItem("a@x.com", "SKU-1", day, 2, "100.00")
	item.DiscountPct = "25"

	agg := NewAggregator(true, true, zap.NewNop())
	pre, _ := agg.Aggregate([]etl.RawLineItem{item})

	require.Len(t, pre, 1)
	assert.Equal(t, "150", pre[0].TotalNative.String())

	noDiscount := NewAggregator(true, false, zap.NewNop())
	pre, _ = noDiscount.Aggregate([]etl.RawLineItem{item})
	require.Len(t, pre, 1)
	assert.Equal(t, "200", pre[0].TotalNative.String())
}

func TestAggregate_SkipsMalformedRows(t *testing.T) {
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	noEmail := lineItem("", "SKU-1", day, 1, "10.00")
	noDate := lineItem("a@x.com", "SKU-1", time.Time{}, 1, "10.00")
	noProduct := lineItem("a@x.com", "", day, 1, "10.00")
	badPrice := lineItem("a@x.com", "SKU-1", day, 1, "free")
	good := lineItem("a@x.com", "SKU-1", day, 1, "10.00")

	agg := NewAggregator(true, true, zap.NewNop())
	pre, skipped := agg.Aggregate([]etl.RawLineItem{noEmail, noDate, noProduct, badPrice, good})

	assert.Len(t, pre, 1)
	assert.Equal(t, 4, skipped)
}

func TestAggregate_DeterministicOrder(t *testing.T) {
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	items := []etl.RawLineItem{
		lineItem("b@x.com", "SKU-2", day, 1, "10.00"),
		lineItem("a@x.com", "SKU-1", day, 1, "10.00"),
		lineItem("c@x.com", "SKU-3", day, 1, "10.00"),
	}

	agg := NewAggregator(true, true, zap.NewNop())
	first, _ := agg.Aggregate(items)
	second, _ := agg.Aggregate(items)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Customer.Email, second[i].Customer.Email)
	}
	assert.Equal(t, "a@x.com", first[0].Customer.Email)
}
