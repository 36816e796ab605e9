package sources

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/salesdw/etl/internal/domain/etl"
	"go.uber.org/zap"
)

// lineItemRow is one extracted order line as the legacy schema stores it
type lineItemRow struct {
	Email        string         `db:"email"`
	CustomerName string         `db:"customer_name"`
	Gender       sql.NullString `db:"gender"`
	Country      sql.NullString `db:"country"`
	RegisteredAt sql.NullTime   `db:"registered_at"`
	SKU          sql.NullString `db:"sku"`
	Barcode      sql.NullString `db:"barcode"`
	ProductCode  sql.NullString `db:"product_code"`
	ProductName  sql.NullString `db:"product_name"`
	Category     sql.NullString `db:"category"`
	OrderDate    time.Time      `db:"order_date"`
	Quantity     int64          `db:"quantity"`
	UnitPrice    string         `db:"unit_price"`
	DiscountPct  sql.NullString `db:"discount_pct"`
}

// SQLConnector extracts order lines from a relational source system over
// sqlx. The source stores one row per order line with customer and product
// attributes denormalized in.
type SQLConnector struct {
	name     string
	db       *sqlx.DB
	currency string
	channel  string
	logger   *zap.Logger
}

// NewSQLConnector opens the source database and returns a connector
func NewSQLConnector(name, dsn, currency, channel string, logger *zap.Logger) (*SQLConnector, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("source %s: connect failed: %w", name, err)
	}
	return &SQLConnector{
		name:     name,
		db:       db,
		currency: currency,
		channel:  channel,
		logger:   logger,
	}, nil
}

// Name returns the source system name
func (c *SQLConnector) Name() string {
	return c.name
}

// Close releases the source connection
func (c *SQLConnector) Close() error {
	return c.db.Close()
}

// Extract returns the order lines whose order date falls inside the window
func (c *SQLConnector) Extract(ctx context.Context, window etl.Window) ([]etl.RawLineItem, error) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"c.email", "c.name AS customer_name", "c.gender", "c.country", "c.registered_at",
		"p.sku", "p.barcode", "p.product_code", "p.name AS product_name", "p.category",
		"o.order_date", "l.quantity", "l.unit_price", "l.discount_pct",
	).
		From("order_lines l").
		Join("orders o", "o.id = l.order_id").
		Join("customers c", "c.id = o.customer_id").
		Join("products p", "p.id = l.product_id").
		Where(sb.LessEqualThan("o.order_date", window.To)).
		OrderBy("o.order_date", "o.id")
	if window.Bounded() {
		sb.Where(sb.GreaterEqualThan("o.order_date", window.From))
	}

	query, args := sb.Build()
	var rows []lineItemRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("source %s: extract query failed: %w", c.name, err)
	}

	items := make([]etl.RawLineItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, c.toLineItem(row))
	}
	c.logger.Debug("sql extraction finished",
		zap.String("source", c.name),
		zap.Int("rows", len(items)),
	)
	return items, nil
}

func (c *SQLConnector) toLineItem(row lineItemRow) etl.RawLineItem {
	var registered *time.Time
	if row.RegisteredAt.Valid {
		t := row.RegisteredAt.Time
		registered = &t
	}
	return etl.RawLineItem{
		Customer: etl.CustomerInfo{
			Email:        row.Email,
			Name:         row.CustomerName,
			Gender:       row.Gender.String,
			Country:      row.Country.String,
			RegisteredAt: registered,
		},
		Product: etl.ProductRef{
			NativeSKU:  row.SKU.String,
			AltCode:    row.Barcode.String,
			SourceCode: row.ProductCode.String,
			Name:       row.ProductName.String,
			Category:   row.Category.String,
		},
		OrderDate:   row.OrderDate,
		Channel:     c.channel,
		Currency:    c.currency,
		Quantity:    row.Quantity,
		UnitPrice:   row.UnitPrice,
		DiscountPct: row.DiscountPct.String,
	}
}
