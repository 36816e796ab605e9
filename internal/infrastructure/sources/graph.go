package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/salesdw/etl/internal/domain/etl"
	"go.uber.org/zap"
)

// extractCypher walks Customer-PLACED->Order-CONTAINS->Product paths and
// returns one record per order line. Dates are compared as ISO date strings,
// the form the source stores them in.
const extractCypher = `
MATCH (c:Customer)-[:PLACED]->(o:Order)-[l:CONTAINS]->(p:Product)
WHERE ($from = '' OR date(o.orderDate) >= date($from))
  AND date(o.orderDate) <= date($to)
RETURN c.email AS email,
       c.name AS customerName,
       c.gender AS gender,
       c.country AS country,
       p.code AS productCode,
       p.name AS productName,
       p.category AS category,
       o.orderDate AS orderDate,
       l.quantity AS quantity,
       l.unitPrice AS unitPrice,
       l.discountPct AS discountPct
ORDER BY o.orderDate
`

// GraphConnector extracts order lines from a graph source system over Bolt.
// The graph models customers, orders, and products as nodes; products there
// carry only a source-local code, never a native SKU.
type GraphConnector struct {
	name     string
	driver   neo4j.DriverWithContext
	currency string
	channel  string
	logger   *zap.Logger
}

// GraphConfig holds the graph source connection settings
type GraphConfig struct {
	URI      string
	Username string
	Password string
}

// NewGraphConnector creates a connector for a graph source
func NewGraphConnector(name string, cfg GraphConfig, currency, channel string, logger *zap.Logger) (*GraphConnector, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("source %s: driver create failed: %w", name, err)
	}
	return &GraphConnector{
		name:     name,
		driver:   driver,
		currency: currency,
		channel:  channel,
		logger:   logger,
	}, nil
}

// Name returns the source system name
func (c *GraphConnector) Name() string {
	return c.name
}

// Close releases the driver connection
func (c *GraphConnector) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

// Extract returns the order lines whose order date falls inside the window
func (c *GraphConnector) Extract(ctx context.Context, window etl.Window) ([]etl.RawLineItem, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	from := ""
	if window.Bounded() {
		from = window.From.Format("2006-01-02")
	}
	params := map[string]any{
		"from": from,
		"to":   window.To.Format("2006-01-02"),
	}

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, extractCypher, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("source %s: extract query failed: %w", c.name, err)
	}

	rows := records.([]*neo4j.Record)
	items := make([]etl.RawLineItem, 0, len(rows))
	for _, record := range rows {
		item, err := c.toLineItem(record)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", c.name, err)
		}
		items = append(items, item)
	}
	c.logger.Debug("graph extraction finished",
		zap.String("source", c.name),
		zap.Int("rows", len(items)),
	)
	return items, nil
}

func (c *GraphConnector) toLineItem(record *neo4j.Record) (etl.RawLineItem, error) {
	orderDate, err := recordDate(record, "orderDate")
	if err != nil {
		return etl.RawLineItem{}, err
	}
	return etl.RawLineItem{
		Customer: etl.CustomerInfo{
			Email:   recordString(record, "email"),
			Name:    recordString(record, "customerName"),
			Gender:  recordString(record, "gender"),
			Country: recordString(record, "country"),
		},
		Product: etl.ProductRef{
			SourceCode: recordString(record, "productCode"),
			Name:       recordString(record, "productName"),
			Category:   recordString(record, "category"),
		},
		OrderDate:   orderDate,
		Channel:     c.channel,
		Currency:    c.currency,
		Quantity:    recordInt(record, "quantity"),
		UnitPrice:   recordString(record, "unitPrice"),
		DiscountPct: recordString(record, "discountPct"),
	}, nil
}

func recordString(record *neo4j.Record, key string) string {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func recordInt(record *neo4j.Record, key string) int64 {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return 0
	}
	if n, ok := value.(int64); ok {
		return n
	}
	return 0
}

func recordDate(record *neo4j.Record, key string) (time.Time, error) {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return time.Time{}, fmt.Errorf("record misses %s", key)
	}
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case neo4j.Date:
		return v.Time(), nil
	case string:
		t, err := time.ParseInLocation("2006-01-02", v, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("unparsable %s %q", key, v)
		}
		return t, nil
	default:
		return time.Time{}, fmt.Errorf("unexpected %s type %T", key, value)
	}
}
