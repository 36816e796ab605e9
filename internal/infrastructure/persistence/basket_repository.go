package persistence

import (
	"context"

	"gorm.io/gorm"
)

// GormBasketRepository implements rules.BasketSource over the warehouse. A
// basket is the set of distinct products one customer bought on one day: the
// finest purchase grain the fact table keeps.
type GormBasketRepository struct {
	db *gorm.DB
}

// NewGormBasketRepository creates a new GormBasketRepository
func NewGormBasketRepository(db *gorm.DB) *GormBasketRepository {
	return &GormBasketRepository{db: db}
}

type basketRow struct {
	CustomerID int64
	TimeID     int64
	SKU        string
}

// Baskets returns the per-customer-day product baskets
func (r *GormBasketRepository) Baskets(ctx context.Context) ([][]string, error) {
	var rows []basketRow
	err := r.db.WithContext(ctx).
		Table("fact_sales").
		Select("fact_sales.customer_id, fact_sales.time_id, dim_product.sku").
		Joins("JOIN dim_product ON dim_product.id = fact_sales.product_id").
		Order("fact_sales.customer_id, fact_sales.time_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	var baskets [][]string
	var current []string
	var lastCustomer, lastTime int64 = -1, -1
	for _, row := range rows {
		if row.CustomerID != lastCustomer || row.TimeID != lastTime {
			if len(current) > 0 {
				baskets = append(baskets, current)
			}
			current = nil
			lastCustomer, lastTime = row.CustomerID, row.TimeID
		}
		current = append(current, row.SKU)
	}
	if len(current) > 0 {
		baskets = append(baskets, current)
	}
	return baskets, nil
}
