package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/salesdw/etl/internal/domain/etl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRESTConnector(t *testing.T, handler http.Handler) *RESTConnector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewRESTConnector("webshop", RESTConfig{
		BaseURL:        server.URL,
		APIKey:         "shop-key",
		PageSize:       2,
		RequestTimeout: 5 * time.Second,
	}, "USD", "web", zap.NewNop())
}

func restLine(email, sku, date string) string {
	return fmt.Sprintf(`{
		"email": %q, "customer_name": "Customer", "gender": "F", "country": "CR",
		"sku": %q, "barcode": "7501001234", "product_name": "Widget", "category": "tools",
		"order_date": %q, "channel": "", "quantity": 2, "unit_price": "10.50", "discount_pct": "5"
	}`, email, sku, date)
}

func TestRESTExtract_PagesUntilDone(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order-lines", r.URL.Path)
		assert.Equal(t, "Bearer shop-key", r.Header.Get("Authorization"))
		assert.Equal(t, "2026-05-15", r.URL.Query().Get("to"))
		assert.Equal(t, "2026-05-01", r.URL.Query().Get("from"))
		assert.Equal(t, "2", r.URL.Query().Get("page_size"))

		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		require.NoError(t, err)
		switch page {
		case 1:
			fmt.Fprintf(w, `{"items": [%s, %s], "has_more": true}`,
				restLine("a@x.com", "SKU-1", "2026-05-02"),
				restLine("b@x.com", "SKU-2", "2026-05-03"))
		case 2:
			fmt.Fprintf(w, `{"items": [%s], "has_more": false}`,
				restLine("c@x.com", "SKU-3", "2026-05-04"))
		default:
			t.Errorf("unexpected page %d", page)
		}
	})

	connector := newRESTConnector(t, handler)
	items, err := connector.Extract(context.Background(), etl.Window{
		From: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, items, 3)

	first := items[0]
	assert.Equal(t, "a@x.com", first.Customer.Email)
	assert.Equal(t, "SKU-1", first.Product.NativeSKU)
	assert.Equal(t, "7501001234", first.Product.AltCode)
	assert.Equal(t, time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC), first.OrderDate)
	assert.Equal(t, "USD", first.Currency)
	assert.Equal(t, "web", first.Channel, "empty channel falls back to the configured one")
	assert.Equal(t, int64(2), first.Quantity)
	assert.Equal(t, "10.50", first.UnitPrice)
}

func TestRESTExtract_UnboundedWindowOmitsFrom(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("from"))
		fmt.Fprint(w, `{"items": [], "has_more": false}`)
	})

	connector := newRESTConnector(t, handler)
	items, err := connector.Extract(context.Background(), etl.Window{
		To: time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRESTExtract_SkipsUnparsableOrderDate(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"items": [%s, %s], "has_more": false}`,
			restLine("a@x.com", "SKU-1", "not-a-date"),
			restLine("b@x.com", "SKU-2", "2026-05-03"))
	})

	connector := newRESTConnector(t, handler)
	items, err := connector.Extract(context.Background(), etl.Window{To: time.Now()})
	require.NoError(t, err, "a malformed line must not fail the extraction")
	require.Len(t, items, 1)
	assert.Equal(t, "b@x.com", items[0].Customer.Email)
}

func TestRESTExtract_ServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	connector := newRESTConnector(t, handler)
	_, err := connector.Extract(context.Background(), etl.Window{To: time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
